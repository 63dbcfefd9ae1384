package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/credentials"
)

// passwordEnv is read when --password is not given so passwords stay out of shell history.
const passwordEnv = "VLP_PASSWORD"

func (a *app) password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("a password is required: use --password or set %s", passwordEnv)
}

func (a *app) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.password(password)
			if err != nil {
				return err
			}
			res, err := a.client.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s", strings.TrimSpace(email))
			if res.Role != "" {
				fmt.Fprintf(a.out, " (%s)", res.Role)
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (default $"+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

type whoami struct {
	*apiclient.CurrentUser
	Credential string     `json:"credential"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (a *app) whoamiCommand() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Long:  "Show the signed in user. With --offline only the stored credential is inspected.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			status := a.client.CredentialStatus(ctx)

			out := whoami{Credential: status.String()}
			if token, err := a.store.Get(ctx); err == nil {
				if exp, ok := credentials.TokenExpiry(token); ok {
					out.ExpiresAt = &exp
				}
			}

			if !offline {
				if status == apiclient.TokenMissing {
					return errors.New("not logged in: run vlpctl login")
				}
				user, err := a.client.Me(ctx)
				if err != nil {
					return err
				}
				out.CurrentUser = user
			}
			return printJSON(a.out, out)
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "do not contact the api")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
	}

	var owner apiclient.RegisterOwnerRequest
	var storeID, ownerPassword string
	ownerCmd := &cobra.Command{
		Use:   "owner",
		Short: "Register the first administrator of a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(storeID)
			if err != nil {
				return fmt.Errorf("invalid --store-id: %w", err)
			}
			pw, err := a.password(ownerPassword)
			if err != nil {
				return err
			}
			owner.StoreID = id
			owner.Password = pw
			if err := a.client.RegisterOwner(cmd.Context(), owner); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Registered", owner.Email)
			return nil
		},
	}
	ownerCmd.Flags().StringVar(&owner.Email, "email", "", "account email")
	ownerCmd.Flags().StringVar(&owner.Name, "name", "", "display name")
	ownerCmd.Flags().StringVar(&ownerPassword, "password", "", "account password (default $"+passwordEnv+")")
	ownerCmd.Flags().StringVar(&storeID, "store-id", "", "store id")
	_ = ownerCmd.MarkFlagRequired("email")
	_ = ownerCmd.MarkFlagRequired("store-id")

	var invite apiclient.RegisterInviteRequest
	var invitePassword string
	inviteCmd := &cobra.Command{
		Use:   "invite CODE",
		Short: "Register a staff account with an invite code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.password(invitePassword)
			if err != nil {
				return err
			}
			invite.InviteCode = args[0]
			invite.Password = pw
			if err := a.client.RegisterInvite(cmd.Context(), invite); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Registered", invite.Email)
			return nil
		},
	}
	inviteCmd.Flags().StringVar(&invite.Email, "email", "", "account email")
	inviteCmd.Flags().StringVar(&invite.Name, "name", "", "display name")
	inviteCmd.Flags().StringVar(&invitePassword, "password", "", "account password (default $"+passwordEnv+")")
	_ = inviteCmd.MarkFlagRequired("email")

	cmd.AddCommand(ownerCmd, inviteCmd)
	return cmd
}

func (a *app) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the api is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a.out, status)
		},
	}
}

func (a *app) requestCommand() *cobra.Command {
	var (
		data   string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an arbitrary request to the api",
		Long: `Send an arbitrary request. PATH is resolved like any other call: /cars becomes
/api/v1/cars and absolute urls are used as given. The stored token is attached.`,
		Example: `  vlpctl request GET /cars --param limit=10
  vlpctl request POST /cars --data '{"stock_no":"A-100"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			if !validMethods[method] {
				return fmt.Errorf("unsupported method %q", args[0])
			}
			query, err := parseParams(params)
			if err != nil {
				return err
			}

			opts := &apiclient.RequestOptions{Query: query}
			if data != "" {
				opts.Body = []byte(data)
				opts.Header = http.Header{"Content-Type": {"application/json"}}
			}

			resp, err := a.client.Do(cmd.Context(), method, args[1], opts)
			if err != nil {
				return err
			}
			return printResponse(a.out, resp)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	return cmd
}

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// parseParams turns key=value pairs into query values. Repeated keys are kept in order.
func parseParams(params []string) (url.Values, error) {
	if len(params) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", p)
		}
		q.Add(key, value)
	}
	return q, nil
}
