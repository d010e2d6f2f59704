package cli

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
)

// NewSendCmd posts a task to a running daemon.
func NewSendCmd() *cobra.Command {
	var (
		addr   string
		url    string
		email  string
		secret string
		extra  []string
		useH2C bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a task to the daemon's POST /quiz endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseExtra(extra)
			if err != nil {
				return err
			}
			body := make(map[string]any, len(fields)+3)
			for k, v := range fields {
				body[k] = v
			}
			body["email"] = email
			body["secret"] = secret
			body["url"] = url

			payload, err := json.Marshal(body)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			endpoint := strings.TrimRight(addr, "/") + "/quiz"
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := newHTTPClient(useH2C).Do(req)
			if err != nil {
				return fmt.Errorf("send task: %w", err)
			}
			defer resp.Body.Close()

			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode, strings.TrimSpace(string(respBody)))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("daemon rejected task with status %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8000", "Daemon base URL")
	cmd.Flags().StringVar(&url, "url", "", "First quiz URL")
	cmd.Flags().StringVar(&email, "email", "", "Email sent with every submission")
	cmd.Flags().StringVar(&secret, "secret", "", "Intake secret")
	cmd.Flags().StringArrayVar(&extra, "extra", nil, "Additional task metadata as key=value (repeatable)")
	cmd.Flags().BoolVar(&useH2C, "h2c", false, "Speak cleartext HTTP/2 to the daemon")
	return cmd
}

func newHTTPClient(useH2C bool) *http.Client {
	if !useH2C {
		return &http.Client{}
	}
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
