package nakama

const (
	// RpcJoinPrototype is the Nakama RPC id clients call to find or create the
	// room of a prototype version.
	RpcJoinPrototype = "join_prototype"

	// MatchNameKibako is the authoritative match handler name registered with Nakama.
	MatchNameKibako = "kibako_room"

	// MatchParamVersionID is the MatchCreate parameter carrying the room key.
	MatchParamVersionID = "prototype_version_id"

	// JoinMetadataTicket is the match join metadata key carrying the join ticket.
	JoinMetadataTicket = "ticket"

	labelApp = "kibako"
)

// Runtime environment keys.
const (
	EnvTicketSecret   = "kibako_ticket_secret"
	EnvStorageBackend = "kibako_storage_backend"
	EnvConfigPath     = "kibako_config_path"

	defaultConfigPath = "data/kibako_config.yml"
)

// Error codes sent with ERROR events, mirroring HTTP semantics.
const (
	errCodeBadRequest = 400
	errCodeNotFound   = 404
	errCodeConflict   = 409
	errCodeInternal   = 500
)

// gRPC status codes returned by RPCs.
const (
	grpcInvalidArgument = 3
	grpcInternal        = 13
	grpcUnauthenticated = 16
)

// maxRoomSize bounds the presences MatchList considers when looking up a room.
const maxRoomSize = 256
