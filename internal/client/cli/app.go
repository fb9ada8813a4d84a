package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dmitrijs2005/framefeed/internal/client/backend"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/memory"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/postgres"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/rest"
	"github.com/dmitrijs2005/framefeed/internal/client/backend/s3"
	"github.com/dmitrijs2005/framefeed/internal/client/config"
	"github.com/dmitrijs2005/framefeed/internal/client/livesync"
	"github.com/dmitrijs2005/framefeed/internal/client/models"
	"github.com/dmitrijs2005/framefeed/internal/client/services"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// App ties the services together for the REPL. One App per process.
type App struct {
	config *config.Config
	log    logging.Logger

	auth          *services.AuthService
	feed          *services.FeedService
	comments      *services.CommentService
	likes         *services.LikeService
	notifications *services.NotificationService
	profile       *services.ProfileService

	reader *bufio.Reader

	mu       sync.Mutex
	feedView *livesync.View[models.Post]
	badge    *livesync.Counter

	closers []func()
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}

	var (
		gateway backend.Gateway
		feed    backend.ChangeFeed
		auth    backend.Auth
		blobs   backend.BlobStore
		closers []func()
	)

	switch cfg.Backend {
	case config.BackendMemory:
		b := memory.New()
		gateway, feed, auth, blobs = b, b, b, b

	case config.BackendRest:
		c := rest.NewClient(cfg, log)
		gateway, feed, auth, blobs = c, rest.NewFeed(cfg, c, log), c, c

	case config.BackendPostgres:
		g, err := postgres.Open(ctx, cfg.DatabaseDSN, log)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		f := postgres.NewFeed(cfg.DatabaseDSN, log)
		store, err := s3.New(cfg, log)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("object store: %w", err)
		}
		// The self-hosted deployment still runs the platform's HTTP auth
		// service, so authentication goes over REST in this mode too.
		gateway, feed, auth, blobs = g, f, rest.NewClient(cfg, log), store
		closers = append(closers, func() { _ = f.Close() }, func() { g.Close() })

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	authSvc := services.NewAuthService(ctx, auth, gateway, log)

	return &App{
		config:        cfg,
		log:           log,
		auth:          authSvc,
		feed:          services.NewFeedService(gateway, feed, blobs, authSvc, log),
		comments:      services.NewCommentService(gateway, feed, authSvc, log),
		likes:         services.NewLikeService(gateway, feed, authSvc, log),
		notifications: services.NewNotificationService(gateway, feed, authSvc, log),
		profile:       services.NewProfileService(gateway, blobs, authSvc, log),
		reader:        bufio.NewReader(os.Stdin),
		closers:       closers,
	}, nil
}

// Run starts the REPL and blocks until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	defer a.Close()
	fmt.Println("framefeed CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}

// Close tears down live views and backend connections.
func (a *App) Close() {
	a.mu.Lock()
	if a.feedView != nil {
		a.feedView.Close()
		a.feedView = nil
	}
	if a.badge != nil {
		a.badge.Close()
		a.badge = nil
	}
	a.mu.Unlock()

	a.auth.Close()
	for _, fn := range a.closers {
		fn()
	}
}

func (a *App) isLoggedIn() bool {
	return a.auth.Current() != nil
}

func (a *App) getStatus() string {
	sess := a.auth.Current()
	if sess == nil {
		return ""
	}
	s := sess.User.DisplayName()
	a.mu.Lock()
	badge := a.badge
	a.mu.Unlock()
	if badge != nil {
		if n := badge.Value(); n > 0 {
			s = fmt.Sprintf("%s, %d unread", s, n)
		}
	}
	return fmt.Sprintf("(%s)", s)
}
