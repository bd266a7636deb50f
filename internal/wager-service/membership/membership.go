// Package membership resolve verifyMembership: o núcleo só age para membros
// aprovados e exige papel admin (ou autoria da aposta) em lock/settle/cancel/adjust.
package membership

import (
	"context"
	"errors"

	"github.com/radieske/social-wager-platform/internal/wager-service/domain"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
)

type Verifier interface {
	Verify(ctx context.Context, userID, groupID string) (domain.Membership, error)
}

// StoreVerifier lê group_members direto do Store
type StoreVerifier struct {
	Store repo.Store
}

func NewStoreVerifier(s repo.Store) *StoreVerifier { return &StoreVerifier{Store: s} }

// Verify devolve forbidden para quem não é membro aprovado
func (v *StoreVerifier) Verify(ctx context.Context, userID, groupID string) (domain.Membership, error) {
	var ms domain.Membership
	err := v.Store.WithinTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		ms, err = CheckTx(ctx, tx, userID, groupID)
		return err
	})
	return ms, err
}

// CheckTx faz a verificação dentro de uma unidade de trabalho já aberta.
// Operações que gravam no ledger usam esta forma, nunca o cache.
func CheckTx(ctx context.Context, tx repo.Tx, userID, groupID string) (domain.Membership, error) {
	ms, err := tx.GetMembership(ctx, userID, groupID)
	if errors.Is(err, domain.ErrNotFound) {
		return ms, domain.Forbidden("user %s is not a member of group %s", userID, groupID)
	}
	if err != nil {
		return ms, err
	}
	if !ms.Approved() {
		return ms, domain.Forbidden("membership of user %s in group %s is %s", userID, groupID, ms.Status)
	}
	return ms, nil
}

// RequireAdminOrCreator aplica a regra de lock/settle/cancel
func RequireAdminOrCreator(ms domain.Membership, bet domain.Bet) error {
	if ms.UserID == bet.CreatedByID || ms.IsAdmin() {
		return nil
	}
	return domain.Forbidden("only the bet creator or a group admin can do this")
}

// RequireAdmin aplica a regra de ajustes de crédito
func RequireAdmin(ms domain.Membership) error {
	if ms.IsAdmin() {
		return nil
	}
	return domain.Forbidden("only a group admin can do this")
}
