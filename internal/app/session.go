package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/SkyAle-bit/Progetto-FE/internal/backend"
	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/output"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
)

func openState(ctx context.Context, p output.Printer, ro *globalOptions) (*store.Store, error) {
	st, err := store.Open(ctx, ro.StatePath)
	if err != nil {
		return nil, failWithHint(p, contract.ErrGeneric, err, "Check --state or state_path permissions", exitGeneric)
	}
	return st, nil
}

// requireSession opens the local state, loads the signed-in user and hands
// the token to the backend. The caller closes the returned store.
func requireSession(ctx context.Context, p output.Printer, be backend.Backend, ro *globalOptions) (contract.Session, *store.Store, error) {
	st, err := openState(ctx, p, ro)
	if err != nil {
		return contract.Session{}, nil, err
	}
	sess, err := st.LoadSession(ctx)
	switch {
	case errors.Is(err, store.ErrNoSession):
		_ = st.Close()
		return contract.Session{}, nil, failWithHint(p, contract.ErrUnauthenticated, errors.New("not signed in"), hintLogin, exitUnauthenticated)
	case errors.Is(err, store.ErrSessionExpired):
		_ = st.ClearSession(ctx)
		_ = st.Close()
		return contract.Session{}, nil, failWithHint(p, contract.ErrUnauthenticated, errors.New("session expired"), hintLogin, exitUnauthenticated)
	case err != nil:
		_ = st.Close()
		return contract.Session{}, nil, failWithHint(p, contract.ErrGeneric, err, "Run `fitctl logout` then `fitctl login`", exitGeneric)
	}
	be.SetToken(sess.Token)
	return sess, st, nil
}

// recordActivity journals a completed write. Journal failures are logged and
// never fail the command.
func recordActivity(ctx context.Context, st *store.Store, ro *globalOptions, a store.Activity) {
	if st == nil {
		return
	}
	if err := st.Record(context.WithoutCancel(ctx), a); err != nil && ro.log != nil {
		ro.log.Warn("journal write failed", zap.String("kind", a.Kind), zap.Error(err))
	}
}

func requireProfessional(p output.Printer, sess contract.Session) error {
	if !sess.User.Role.IsProfessional() {
		return failWithHint(p, contract.ErrPermissionDenied, errors.New("only trainers and nutritionists can do this"), "", exitUsage)
	}
	return nil
}

func requireClient(p output.Printer, sess contract.Session) error {
	if sess.User.Role != contract.RoleClient {
		return failWithHint(p, contract.ErrPermissionDenied, errors.New("only clients can do this"), "", exitUsage)
	}
	return nil
}
