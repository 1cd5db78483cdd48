package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/skyanki/internal/metrics"
	"github.com/desertthunder/skyanki/internal/models"
	"github.com/desertthunder/skyanki/internal/repositories"
	"github.com/desertthunder/skyanki/internal/services"
	"github.com/desertthunder/skyanki/internal/shared"
	"github.com/desertthunder/skyanki/internal/tasks"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	ruleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Stores and clients are created on first use so that commands like "setup config" work
// without credentials or a database.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	metrics    *metrics.Metrics
	endpoints  services.Endpoints
	apiBaseURL string

	db         *sql.DB
	ownsDB     bool
	tokens     *repositories.TokenRepository
	executions *repositories.ExecutionRepository
	words      *repositories.WordRepository

	session *services.Session
	skyeng  services.Vocabulary
	anki    services.Flashcards
	api     *services.RawClient
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB            // opened from the config when nil
	Endpoints  services.Endpoints // production endpoints when zero
	APIBaseURL string             // base of relative "api get" paths
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	m := metrics.New()

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: m.InstrumentClient(opts.HTTPClient),
		logger:     opts.Logger,
		output:     opts.Output,
		metrics:    m,
		endpoints:  opts.Endpoints,
		apiBaseURL: opts.APIBaseURL,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, wordSetsCommand, wordsCommand, meaningsCommand, syncCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration and applies the log level ahead of every command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		config, err := shared.Load(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if cmd.Bool("verbose") {
		level = "debug"
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))

	return ctx, nil
}

// after releases the database opened by the command.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close closes the database when the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db, r.ownsDB = nil, false
	return err
}

func (r *Runner) conf() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// openStore opens the database, applies pending migrations and builds the repositories.
func (r *Runner) openStore() error {
	if r.tokens != nil {
		return nil
	}

	dbConf := r.conf().Database
	if r.db == nil {
		if err := dbConf.Validate(); err != nil {
			return err
		}

		db, err := shared.OpenDatabase(dbConf.Driver, dbConf.DataSource())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, dbConf.MaxOpenConns, dbConf.MaxIdleConns)
		r.db, r.ownsDB = db, true
	}

	driver := r.driver()
	if err := shared.RunMigrations(r.db, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.tokens = repositories.NewTokenRepository(r.db, driver)
	r.executions = repositories.NewExecutionRepository(r.db, driver)
	r.words = repositories.NewWordRepository(r.db, driver)
	return nil
}

// connectSkyeng builds the session from the stored token and the clients sharing it.
func (r *Runner) connectSkyeng() error {
	if r.session != nil {
		return nil
	}

	conf := r.conf().Skyeng
	if conf.Username == "" || conf.Password == "" {
		return fmt.Errorf("%w: set skyeng.username and skyeng.password or SKYENG_USERNAME and SKYENG_PASSWORD", shared.ErrMissingCredentials)
	}

	if err := r.openStore(); err != nil {
		return err
	}

	stored, err := r.tokens.Get(conf.Username)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	session, err := services.NewSession(
		models.Credentials{Username: conf.Username, Password: conf.Password},
		services.SessionOpts{
			Endpoints:  r.endpoints,
			HTTPClient: r.httpClient,
			Token:      stored,
			Logger:     shared.WithLogger(r.logger, "component", "session"),
		},
	)
	if err != nil {
		return err
	}

	session.OnTokenChange(func(tok models.Token) {
		if err := r.tokens.Save(conf.Username, tok); err != nil {
			r.logger.Warn("failed to persist token", "login", shared.RedactLogin(conf.Username), "error", err)
		}
	})

	r.session = session
	r.skyeng = services.NewSkyengService(session, services.SkyengOpts{
		Endpoints:      r.endpoints,
		HTTPClient:     r.httpClient,
		PageSize:       conf.PageSize,
		RateLimit:      conf.RateLimit,
		AcceptLanguage: conf.AcceptLanguage,
	})
	return nil
}

// connectAPI builds the raw client, authenticated through the session's token source.
func (r *Runner) connectAPI(ctx context.Context) error {
	if r.api != nil {
		return nil
	}
	if err := r.connectSkyeng(); err != nil {
		return err
	}

	client := &http.Client{
		Transport: &oauth2.Transport{Source: r.session.TokenSource(ctx), Base: r.httpClient.Transport},
		Timeout:   r.httpClient.Timeout,
	}
	api, err := services.NewRawClient(r.apiBaseURL, client)
	if err != nil {
		return err
	}
	r.api = api
	return nil
}

func (r *Runner) connectAnki() {
	if r.anki == nil {
		r.anki = services.NewAnkiService(r.conf().Anki.URL, r.httpClient)
	}
}

func (r *Runner) syncEngine() *tasks.SyncEngine {
	return tasks.NewSyncEngine(r.skyeng, r.anki, r.executions, r.words, r.metrics, shared.WithLogger(r.logger, "component", "sync"))
}

// pushMetrics sends the collected metrics to the configured Pushgateway, if any.
func (r *Runner) pushMetrics(ctx context.Context) {
	conf := r.conf().Metrics
	if conf.PushgatewayURL == "" {
		return
	}

	job := conf.Job
	if job == "" {
		job = "skyanki"
	}
	if err := r.metrics.Push(ctx, conf.PushgatewayURL, job); err != nil {
		r.logger.Warn("metrics not pushed", "url", conf.PushgatewayURL, "error", err)
		return
	}
	r.logger.Debug("metrics pushed", "url", conf.PushgatewayURL, "job", job)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	rule := ruleStyle.Render(strings.Repeat("═", 39))
	r.writePlain("%s\n%s\n%s\n", rule, headerStyle.Render(title), rule)
}
