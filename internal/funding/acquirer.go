package funding

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/congo-pay/moneyflow/internal/money"
)

// ErrCardDeclined is returned when the acquirer refuses an authorization.
var ErrCardDeclined = errors.New("card declined")

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeCardIn(ctx context.Context, input CardInAuthorization) (AuthorizationDecision, error)
	AuthorizeCardOut(ctx context.Context, input CardOutAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// CardInAuthorization encapsulates details needed for a card top-up authorization.
type CardInAuthorization struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     money.Money
	ClientTxID string
}

// CardOutAuthorization captures data for a push-to-card payout authorization.
type CardOutAuthorization struct {
	CardNumber string
	Amount     money.Money
	ClientTxID string
}

// StaticAcquirer approves everything with a synthetic reference.
type StaticAcquirer struct{}

// AuthorizeCardIn approves the funding request.
func (StaticAcquirer) AuthorizeCardIn(_ context.Context, _ CardInAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}

// AuthorizeCardOut approves the withdrawal request.
func (StaticAcquirer) AuthorizeCardOut(_ context.Context, _ CardOutAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}
