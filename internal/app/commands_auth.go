package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SkyAle-bit/Progetto-FE/internal/contract"
	"github.com/SkyAle-bit/Progetto-FE/internal/store"
)

type sessionView struct {
	User      contract.User `json:"user"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

func (s sessionView) PlainLines() []string {
	line := fmt.Sprintf("%s <%s> %s id=%d", s.User.FullName(), s.User.Email, s.User.Role, s.User.ID)
	if s.ExpiresAt != nil {
		line += " expires=" + s.ExpiresAt.Format("2006-01-02 15:04")
	}
	return []string{line}
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email, password string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "login")
			if err != nil {
				return err
			}
			if passwordStdin {
				if password != "" {
					return failUsage(p, errors.New("use either --password or --password-stdin"), "")
				}
				if password, err = readSecret(cmd.InOrStdin()); err != nil {
					return failUsage(p, err, "Pipe the password on stdin")
				}
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return failUsage(p, errors.New("email and password are required"), "Pass --email and --password-stdin")
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			st, err := openState(ctx, p, ro)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := callBackend(ctx, "backend.login", func() (contract.Session, error) {
				return be.Login(ctx, email, password)
			})
			if err != nil {
				return failBackend(p, err)
			}
			if exp, ok := store.TokenExpiry(sess.Token); ok {
				sess.ExpiresAt = &exp
			}
			if err := st.SaveSession(ctx, sess); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check --state permissions", exitGeneric)
			}
			recordActivity(ctx, st, ro, store.Activity{Kind: store.KindLogin, UserID: sess.User.ID, Ref: sess.User.Email})
			return successWithMeta(ctx, p, ro, sessionView{User: sess.User, ExpiresAt: sess.ExpiresAt}, nil, nil)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, ro, err := buildContext(cmd, opts, "logout")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			st, err := openState(ctx, p, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			sess, loadErr := st.LoadSession(ctx)
			if err := st.ClearSession(ctx); err != nil {
				return failWithHint(p, contract.ErrGeneric, err, "Check --state permissions", exitGeneric)
			}
			signedIn := loadErr == nil || errors.Is(loadErr, store.ErrSessionExpired)
			if signedIn {
				recordActivity(ctx, st, ro, store.Activity{Kind: store.KindLogout, UserID: sess.User.ID})
			}
			return p.Success(map[string]any{"signed_out": signedIn}, nil, nil)
		},
	}
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "whoami")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			sess, st, err := requireSession(ctx, p, be, ro)
			if err != nil {
				return err
			}
			defer st.Close()
			return p.Success(sessionView{User: sess.User, ExpiresAt: sess.ExpiresAt}, nil, nil)
		},
	}
}

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var in contract.Registration
	var passwordStdin bool
	var planID, ptID, nutritionistID, pictureFile string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a client account on a plan with a trainer and a nutritionist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, be, ro, err := buildContext(cmd, opts, "register")
			if err != nil {
				return err
			}
			if passwordStdin {
				if in.Password, err = readSecret(cmd.InOrStdin()); err != nil {
					return failUsage(p, err, "Pipe the password on stdin")
				}
			}
			if err := fillRegistrationIDs(&in, planID, ptID, nutritionistID); err != nil {
				return failUsage(p, err, "Use `fitctl plans` and `fitctl professionals --role` to find ids")
			}
			if err := validateRegistration(in); err != nil {
				return failUsage(p, err, "")
			}
			if pictureFile != "" {
				if in.ProfilePicture != "" {
					return failUsage(p, errors.New("pass only one of --profile-picture or --profile-picture-file"), "")
				}
				if in.ProfilePicture, err = pictureDataURL(pictureFile); err != nil {
					return failUsage(p, err, "Pass a PNG, JPEG, GIF or WebP image")
				}
			}
			ctx, cancel := commandContext(ro)
			defer cancel()
			user, err := callBackend(ctx, "backend.register", func() (contract.User, error) {
				return be.Register(ctx, in)
			})
			if err != nil {
				return failBackend(p, err)
			}
			if st, serr := store.Open(ctx, ro.StatePath); serr == nil {
				recordActivity(ctx, st, ro, store.Activity{Kind: store.KindRegister, UserID: user.ID, Ref: in.Email})
				_ = st.Close()
			}
			return successWithMeta(ctx, p, ro, user, nil, []string{"Run `fitctl login` to sign in"})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.FirstName, "first-name", "", "First name")
	f.StringVar(&in.LastName, "last-name", "", "Last name")
	f.StringVar(&in.Email, "email", "", "Email")
	f.StringVar(&in.Password, "password", "", "Password (prefer --password-stdin)")
	f.BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	f.StringVar(&planID, "plan", "", "Plan id")
	f.StringVar(&in.PaymentFrequency, "payment-frequency", "MONTHLY", "Payment frequency")
	f.StringVar(&ptID, "trainer", "", "Personal trainer id")
	f.StringVar(&nutritionistID, "nutritionist", "", "Nutritionist id")
	f.StringVar(&in.ProfilePicture, "profile-picture", "", "Profile picture URL or data URL")
	f.StringVar(&pictureFile, "profile-picture-file", "", "Image file sent inline as a base64 data URL")
	return cmd
}

// pictureDataURL reads an image file into a data:<mime>;base64, URL.
func pictureDataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read profile picture: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("profile picture %s is empty", path)
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("profile picture %s is %s, not an image", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func fillRegistrationIDs(in *contract.Registration, plan, pt, nutritionist string) error {
	var err error
	if in.SelectedPlanID, err = parseID("--plan", plan); err != nil {
		return err
	}
	if in.SelectedPtID, err = parseID("--trainer", pt); err != nil {
		return err
	}
	if in.SelectedNutritionistID, err = parseID("--nutritionist", nutritionist); err != nil {
		return err
	}
	return nil
}

const minPasswordLen = 6

func validateRegistration(in contract.Registration) error {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"--first-name", in.FirstName},
		{"--last-name", in.LastName},
		{"--email", in.Email},
		{"--payment-frequency", in.PaymentFrequency},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if in.Password == "" {
		missing = append(missing, "--password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	if len(in.Password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("invalid email %q", in.Email)
	}
	return nil
}

// parseID reads a positive numeric id from a flag value.
func parseID(flag, v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("%s is required", flag)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive id", flag, v)
	}
	return id, nil
}
