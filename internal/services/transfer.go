package services

import (
	"context"
	"fmt"

	"myfinance/internal/backend"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

// Transfer moves money between two accounts of the owner as an expense leg
// on the source and an income leg on the destination sharing one transfer
// group id. Both legs and both balance changes commit together.
func (l *Ledger) Transfer(ctx context.Context, ownerID string, in core.TransferInput) (core.TransferResult, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.TransferResult{}, err
	}

	now := l.timestamp()
	groupID := l.newID()
	leg := func(accountID string, direction core.Direction) core.Transaction {
		gid := groupID
		return core.Transaction{
			ID:              l.newID(),
			OwnerID:         ownerID,
			AccountID:       accountID,
			Direction:       direction,
			Amount:          in.Amount,
			Currency:        in.Currency,
			OccurredAt:      in.OccurredAt,
			Category:        copyString(in.Category),
			Note:            copyString(in.Note),
			TransferGroupID: &gid,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	result := core.TransferResult{
		TransferGroupID: groupID,
		Outgoing:        leg(in.FromAccountID, core.Expense),
		Incoming:        leg(in.ToAccountID, core.Income),
	}

	err := l.update(ctx, log.OpTransfer, ownerID, func(tx backend.Tx) error {
		if _, err := tx.GetAccount(in.FromAccountID); err != nil {
			return err
		}
		if _, err := tx.GetAccount(in.ToAccountID); err != nil {
			return err
		}
		for _, t := range []core.Transaction{result.Outgoing, result.Incoming} {
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
			if err := applyDelta(tx, t.AccountID, t.SignedAmount(), now); err != nil {
				return err
			}
		}
		return nil
	}, func() core.LedgerEvent {
		return core.LedgerEvent{
			Type:           core.EventTransferCreated,
			OwnerID:        ownerID,
			AccountIDs:     []string{in.FromAccountID, in.ToAccountID},
			TransactionIDs: []string{result.Outgoing.ID, result.Incoming.ID},
		}
	})
	if err != nil {
		return core.TransferResult{}, fmt.Errorf("transfer: %w", err)
	}

	l.logger.DebugContext(ctx, "Transfer recorded",
		log.FieldOwnerID, ownerID,
		log.FieldTransferGroup, groupID,
		log.FieldAmount, in.Amount.String(),
		log.FieldCurrency, in.Currency)
	return result, nil
}
