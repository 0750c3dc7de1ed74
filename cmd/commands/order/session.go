package order

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"nathanbeddoewebdev/vpsorder/internal/config"
	"nathanbeddoewebdev/vpsorder/internal/order/api"
	"nathanbeddoewebdev/vpsorder/internal/order/gateway"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"
	"nathanbeddoewebdev/vpsorder/internal/services/auth"
	"nathanbeddoewebdev/vpsorder/internal/txstore"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Package-level hooks replaced by tests.
var (
	storeFactory = auth.DefaultStore

	// pollOptions are appended to every poller started by a command.
	pollOptions []poller.Option

	// isTerminal reports whether interactive views may be used.
	isTerminal = func() bool {
		return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
	}

	// openBrowser launches hosted checkout pages. Nil uses the system browser.
	openBrowser func(url string) error
)

// session bundles what every order command needs: the resolved config, an
// authenticated API client and the local transaction store.
type session struct {
	cfg    *config.Config
	apiURL string
	client *api.Client
	repo   *txstore.SQLiteRepository
	logger *slog.Logger
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	apiURL := cfg.ResolvedAPIURL()
	if apiURL == "" {
		return nil, errors.New("no API URL configured: set " + config.EnvAPIURL + " or run 'vpsorder config set api-url <url>'")
	}

	logger := slog.Default()
	provider := auth.NewBearerProvider(storeFactory(), apiURL)
	repo, err := txstore.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction store: %w", err)
	}

	return &session{
		cfg:    cfg,
		apiURL: apiURL,
		client: api.NewClient(apiURL, provider, api.WithLogger(logger)),
		repo:   repo,
		logger: logger,
	}, nil
}

func (s *session) Close() {
	s.repo.Close()
}

func (s *session) recorder() txstore.Recorder {
	return txstore.Recorder{Repo: s.repo}
}

// checkout builds the hosted checkout adapter. Browser output goes to
// stderr so it never mixes with command output.
func (s *session) checkout(stderr io.Writer) gateway.BrowserAdapter {
	return gateway.BrowserAdapter{
		CheckoutURL: s.cfg.ResolvedCheckoutURL(),
		Open:        openBrowser,
		Output:      stderr,
	}
}

// newWorkflow wires a workflow to the session. cfg supplies the callbacks.
func (s *session) newWorkflow(cmd *cobra.Command, cfg workflow.Config) (*workflow.Workflow, error) {
	cfg.API = s.client
	cfg.Selector = gateway.NewSelector(s.cfg.Gateway())
	cfg.Checkout = s.checkout(cmd.ErrOrStderr())
	cfg.Recorder = s.recorder()
	cfg.Logger = s.logger
	cfg.PollerOptions = append(cfg.PollerOptions, pollOptions...)
	return workflow.New(cfg)
}
