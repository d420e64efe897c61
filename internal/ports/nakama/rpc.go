package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"kibako/internal/app"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// JoinPrototypeRequest is the join_prototype RPC payload.
type JoinPrototypeRequest struct {
	PrototypeVersionID string `json:"prototypeVersionId"`
}

// JoinPrototypeResponse is returned to clients requesting a prototype room.
type JoinPrototypeResponse struct {
	MatchID string `json:"matchId"`
	Ticket  string `json:"ticket,omitempty"`
	IsNew   bool   `json:"isNew"`
}

// rpcJoinPrototype finds the room of a prototype version, creating it when
// none is running, and issues a join ticket for the caller.
//
// Two callers racing on a version with no room may both create one; each
// room then serves its own joiners until it empties.
func rpcJoinPrototype(tickets *app.TicketService) func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if userID == "" {
			return "", runtime.NewError("authentication required", grpcUnauthenticated)
		}

		var req JoinPrototypeRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid payload", grpcInvalidArgument)
		}
		if _, err := uuid.Parse(req.PrototypeVersionID); err != nil {
			return "", runtime.NewError("prototypeVersionId must be a UUID", grpcInvalidArgument)
		}

		minSize := 0
		maxSize := maxRoomSize
		matches, err := nk.MatchList(ctx, 1, true, labelFor(req.PrototypeVersionID), &minSize, &maxSize, "")
		if err != nil {
			logger.Error("rpcJoinPrototype [User:%s]: Failed to list matches: %v", userID, err)
			return "", runtime.NewError("internal error", grpcInternal)
		}

		resp := JoinPrototypeResponse{}
		if len(matches) > 0 {
			resp.MatchID = matches[0].MatchId
			logger.Debug("rpcJoinPrototype [User:%s]: Found room %s", userID, resp.MatchID)
		} else {
			matchID, err := nk.MatchCreate(ctx, MatchNameKibako, map[string]interface{}{
				MatchParamVersionID: req.PrototypeVersionID,
			})
			if err != nil {
				logger.Error("rpcJoinPrototype [User:%s]: Failed to create match: %v", userID, err)
				return "", runtime.NewError("internal error", grpcInternal)
			}
			resp.MatchID = matchID
			resp.IsNew = true
			logger.Info("rpcJoinPrototype [User:%s]: Created room %s for %s", userID, matchID, req.PrototypeVersionID)
		}

		if tickets.Enabled() {
			ticket, err := tickets.Issue(userID, req.PrototypeVersionID)
			if err != nil {
				logger.Error("rpcJoinPrototype [User:%s]: Failed to issue ticket: %v", userID, err)
				return "", runtime.NewError("internal error", grpcInternal)
			}
			resp.Ticket = ticket
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return "", runtime.NewError("internal error", grpcInternal)
		}
		return string(b), nil
	}
}
