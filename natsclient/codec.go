package natsclient

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/notary"
)

var ErrMalformedEvent = errors.New("malformed event message")

const (
	fieldKind          = "kind"
	fieldWalletID      = "wallet_id"
	fieldTransactionID = "transaction_id"
	fieldOwner         = "owner"
	fieldCreatedAt     = "created_at_micro"
)

// encodeEvent encodes the event as protobuf Struct message.
func encodeEvent(e notary.Event) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		fieldKind:          string(e.Kind),
		fieldWalletID:      e.WalletID.String(),
		fieldTransactionID: e.TransactionID.String(),
		fieldOwner:         e.Owner.String(),
		fieldCreatedAt:     e.CreatedAt.UnixMicro(),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(msg)
}

// decodeEvent decodes the event from protobuf Struct message.
func decodeEvent(raw []byte) (notary.Event, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return notary.Event{}, errors.Join(ErrMalformedEvent, err)
	}
	fields := msg.GetFields()
	kind := fields[fieldKind].GetStringValue()
	walletID := fields[fieldWalletID].GetStringValue()
	if kind == "" || walletID == "" {
		return notary.Event{}, errors.Join(ErrMalformedEvent, fmt.Errorf("missing %s or %s", fieldKind, fieldWalletID))
	}
	return notary.Event{
		Kind:          notary.EventKind(kind),
		WalletID:      identity.Handle(walletID),
		TransactionID: identity.Handle(fields[fieldTransactionID].GetStringValue()),
		Owner:         identity.Owner(fields[fieldOwner].GetStringValue()),
		CreatedAt:     time.UnixMicro(int64(fields[fieldCreatedAt].GetNumberValue())),
	}, nil
}
