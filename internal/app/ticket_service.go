package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// TicketService issues and verifies signed room join tickets. A ticket binds
// one user to one prototype version room for a limited time.
type TicketService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

const (
	claimUserID    = "uid"
	claimVersionID = "pvid"
	ticketIssuer   = "kibako"
)

var (
	ErrTicketConfig   = errors.New("ticket service is not configured")
	ErrTicketInvalid  = errors.New("join ticket is invalid")
	ErrTicketMismatch = errors.New("join ticket does not match user or room")
	ErrTicketExpired  = errors.New("join ticket has expired")
)

// Expiry is checked against the service clock, not by the parser.
var ticketParser = &jwt.Parser{SkipClaimsValidation: true}

// NewTicketService returns a service signing with secret. A nil service or an
// empty secret disables tickets; Enabled reports which.
func NewTicketService(secret string, ttl time.Duration) *TicketService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TicketService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled reports whether tickets are issued and enforced.
func (s *TicketService) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Issue signs a ticket for userID to join the room of versionID.
func (s *TicketService) Issue(userID, versionID string) (string, error) {
	if !s.Enabled() {
		return "", ErrTicketConfig
	}
	if userID == "" || versionID == "" {
		return "", fmt.Errorf("%w: user and version are required", ErrTicketInvalid)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":          ticketIssuer,
		"iat":          now.Unix(),
		"exp":          now.Add(s.ttl).Unix(),
		claimUserID:    userID,
		claimVersionID: versionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature, expiry and subject of a ticket.
func (s *TicketService) Verify(ticket, userID, versionID string) error {
	if !s.Enabled() {
		return ErrTicketConfig
	}

	token, err := ticketParser.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTicketInvalid, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ErrTicketInvalid
	}
	if !claims.VerifyExpiresAt(s.now().Unix(), true) {
		return ErrTicketExpired
	}
	if claims[claimUserID] != userID || claims[claimVersionID] != versionID {
		return ErrTicketMismatch
	}
	return nil
}
