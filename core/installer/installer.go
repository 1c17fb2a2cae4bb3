package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/dmitrymomot/lehaproxy/core/logger"
	"github.com/dmitrymomot/lehaproxy/core/reverter"
	"github.com/dmitrymomot/lehaproxy/pkg/bundle"
	"github.com/dmitrymomot/lehaproxy/pkg/haproxy"
)

// Plugin is the method set the CLI drives.
type Plugin interface {
	Prepare(ctx context.Context) error
	DeployCert(domain string, src Sources) error
	Save(title string, temporary bool) error
	RollbackCheckpoints(n int) error
	GetAllNames() ([]string, error)
}

var _ Plugin = (*Installer)(nil)

// Sources names the files a certificate is deployed from. KeyPath is required,
// and either FullchainPath or CertPath.
type Sources struct {
	CertPath      string
	KeyPath       string
	ChainPath     string
	FullchainPath string
}

// CertKey points at a managed bundle. HAProxy keeps certificate and key in one
// file, so CertPath and KeyPath are the same.
type CertKey struct {
	CertPath   string
	KeyPath    string
	ConfigPath string
}

// Installer stages certificate bundles for HAProxy and writes them under the
// protection of a reverter checkpoint.
type Installer struct {
	mu       sync.Mutex
	cfg      Config
	fs       afero.Fs
	store    *storage
	rev      *reverter.Reverter
	ctrl     Controller
	validate Validator
	fallback FallbackGenerator
	staged   stagedBundles
	logger   *slog.Logger
}

// New creates an installer writing into cfg.CrtDir.
func New(cfg Config, rev *reverter.Reverter, opts ...Option) (*Installer, error) {
	if cfg.CrtDir == "" {
		return nil, ErrCrtDirRequired
	}
	if rev == nil {
		return nil, ErrReverterRequired
	}
	if cfg.CrtSuffix == "" {
		cfg.CrtSuffix = ".pem"
	}
	if cfg.FallbackCommonName == "" {
		cfg.FallbackCommonName = "localhost"
	}

	i := &Installer{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		rev:      rev,
		validate: bundle.Validate,
		fallback: bundle.SelfSigned,
		staged:   newStagedBundles(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.ctrl == nil {
		i.ctrl = haproxy.New(cfg.HAProxy, haproxy.WithLogger(i.logger))
	}
	i.logger = i.logger.With(logger.Component("installer"))
	i.store = &storage{fs: i.fs, dir: cfg.CrtDir, suffix: cfg.CrtSuffix}
	return i, nil
}

// DeployCert reads the named sources and stages the resulting bundle for domain.
// Nothing is written until Save.
func (i *Installer) DeployCert(domain string, src Sources) error {
	if src.KeyPath == "" {
		return fmt.Errorf("%w: a key path is required to install a certificate", ErrPlugin)
	}

	var (
		m     bundle.Material
		notes strings.Builder
		err   error
	)
	switch {
	case src.FullchainPath != "":
		if m.Fullchain, err = i.readSource(src.FullchainPath); err != nil {
			return err
		}
		fmt.Fprintf(&notes, "\t- Used fullchain path %s\n", src.FullchainPath)
	case src.CertPath != "":
		if m.Cert, err = i.readSource(src.CertPath); err != nil {
			return err
		}
		fmt.Fprintf(&notes, "\t- Used cert path %s\n", src.CertPath)
		if src.ChainPath != "" {
			if m.Chain, err = i.readSource(src.ChainPath); err != nil {
				return err
			}
			fmt.Fprintf(&notes, "\t- Used chain path %s\n", src.ChainPath)
		} else {
			notes.WriteString("\t- No chain path provided\n")
		}
	default:
		return fmt.Errorf("%w: a cert or fullchain path is required to install a certificate", ErrPlugin)
	}

	if m.Key, err = i.readSource(src.KeyPath); err != nil {
		return err
	}
	fmt.Fprintf(&notes, "\t- Used key path %s\n", src.KeyPath)

	return i.stage(domain, m, notes.String())
}

// DeployBundle stages already loaded material for domain.
func (i *Installer) DeployBundle(domain string, m bundle.Material) error {
	return i.stage(domain, m, "")
}

func (i *Installer) readSource(path string) ([]byte, error) {
	data, err := afero.ReadFile(i.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPlugin, path, err)
	}
	return data, nil
}

func (i *Installer) stage(domain string, m bundle.Material, sourceNotes string) error {
	if domain == "" || strings.ContainsAny(domain, `/\`) || domain == "." || domain == ".." {
		return fmt.Errorf("%w: invalid domain %q", ErrPlugin, domain)
	}

	data, err := bundle.Assemble(m)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlugin, err)
	}

	path := i.store.path(domain)
	exists, err := i.store.exists(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStaging, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	verb := "Added"
	if i.staged.put(path, data, exists) {
		verb = "Changed"
	}
	i.staged.notes += fmt.Sprintf("%s certificate for domain %s\n%s", verb, domain, sourceNotes)

	i.logger.Debug("bundle staged", logger.Domain(domain), logger.FilePath(path), logger.Action(strings.ToLower(verb)))
	return nil
}

// Save writes every staged bundle. Changed paths are captured in a checkpoint
// before the write and new paths are registered for deletion on rollback.
// A title on a non-temporary save finalizes the checkpoint into history.
func (i *Installer) Save(title string, temporary bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.ensureFallback(); err != nil {
		i.staged = newStagedBundles()
		return fmt.Errorf("%w: %w", ErrStaging, err)
	}

	if i.staged.empty() && i.rev.State() == reverter.StateIdle {
		i.logger.Debug("nothing to save")
		return nil
	}

	staged := i.staged.take()
	opened := i.rev.State() == reverter.StateIdle

	if err := i.capture(staged, temporary); err != nil {
		if opened && i.rev.State() == reverter.StateStaging {
			if rbErr := i.rev.RollbackCheckpoints(0); rbErr != nil {
				i.logger.Error("failed to discard checkpoint after staging error", logger.Error(rbErr))
			}
		}
		return fmt.Errorf("%w: %w", ErrStaging, err)
	}

	for path, data := range staged.all() {
		if err := i.store.write(path, data); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		i.logger.Debug("bundle written", logger.FilePath(path))
	}

	if title != "" && !temporary {
		if err := i.rev.FinalizeCheckpoint(title); err != nil {
			return fmt.Errorf("%w: %w", ErrPlugin, err)
		}
	}

	i.logger.Info("bundles saved",
		logger.Count("changed", len(staged.changed)),
		logger.Count("new", len(staged.fresh)),
		slog.Bool("temporary", temporary))
	return nil
}

func (i *Installer) capture(staged stagedBundles, temporary bool) error {
	changed := staged.changedPaths()
	if temporary {
		if err := i.rev.AddToTempCheckpoint(changed, staged.notes); err != nil {
			return err
		}
	} else if err := i.rev.AddToCheckpoint(changed, staged.notes); err != nil {
		return err
	}

	if fresh := staged.freshPaths(); len(fresh) > 0 {
		if err := i.rev.RegisterFileCreation(temporary, fresh...); err != nil {
			return err
		}
	}
	return nil
}

// RollbackCheckpoints reverts the pending checkpoint and the n most recent saves.
func (i *Installer) RollbackCheckpoints(n int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.rev.RollbackCheckpoints(n); err != nil {
		return fmt.Errorf("%w: %w", ErrPlugin, err)
	}
	return nil
}

// RecoveryRoutine reverts changes left by an interrupted run.
func (i *Installer) RecoveryRoutine() error {
	if err := i.rev.RecoveryRoutine(); err != nil {
		return fmt.Errorf("%w: %w", ErrPlugin, err)
	}
	return nil
}

// ViewConfigChanges writes the checkpoint history to w.
func (i *Installer) ViewConfigChanges(w io.Writer) error {
	return i.rev.ViewConfigChanges(w)
}

// GetAllCertsKeys returns bundles issued by the configured CA whose key matches
// the certificate. Other bundles are logged and skipped.
func (i *Installer) GetAllCertsKeys() ([]CertKey, error) {
	paths, err := i.store.list()
	if err != nil {
		return nil, err
	}

	var out []CertKey
	for _, path := range paths {
		data, err := i.store.read(path)
		if err != nil {
			i.logger.Warn("skipping unreadable bundle", logger.FilePath(path), logger.Error(err))
			continue
		}
		res := i.validate(data)
		switch {
		case !res.Valid:
			i.logger.Info("skipping invalid bundle", logger.FilePath(path), slog.String("reason", res.Reason))
		case res.IssuerCN != i.cfg.CACommonName:
			i.logger.Info("skipping bundle from another issuer",
				logger.FilePath(path),
				slog.String("issuer", res.IssuerCN),
				slog.String("expected", i.cfg.CACommonName))
		default:
			out = append(out, CertKey{CertPath: path, KeyPath: path, ConfigPath: i.cfg.HAProxy.Config})
		}
	}
	return out, nil
}

// GetAllNames returns the domains that currently have a bundle.
func (i *Installer) GetAllNames() ([]string, error) {
	paths, err := i.store.list()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		if d := i.store.domain(path); d != fallbackName {
			names = append(names, d)
		}
	}
	return names, nil
}

// Prepare checks that HAProxy can be restarted once certificates are deployed.
func (i *Installer) Prepare(ctx context.Context) error {
	if err := i.ctrl.ServiceManagerExists(); err != nil {
		return err
	}
	if err := i.ctrl.CheckVersion(ctx); err != nil {
		return err
	}
	if err := i.fs.MkdirAll(i.cfg.CrtDir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPlugin, i.cfg.CrtDir, err)
	}
	return nil
}

// ConfigTest asks HAProxy to validate its configuration.
func (i *Installer) ConfigTest(ctx context.Context) error {
	if err := i.ctrl.ConfigTest(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigTest, err)
	}
	return nil
}

// Restart validates the configuration and restarts HAProxy. A failed
// configuration test prevents the restart.
func (i *Installer) Restart(ctx context.Context) error {
	if err := i.ctrl.Restart(ctx); err != nil {
		if errors.Is(err, haproxy.ErrConfigTest) {
			return fmt.Errorf("%w: %w", ErrConfigTest, err)
		}
		return err
	}
	return nil
}

// SupportedEnhancements lists the enhancements Enhance accepts. There are none.
func (i *Installer) SupportedEnhancements() []string {
	return nil
}

// Enhance always fails; HAProxy configuration is never rewritten.
func (i *Installer) Enhance(domain, enhancement string) error {
	return fmt.Errorf("%w: unsupported enhancement %q for %s", ErrPlugin, enhancement, domain)
}
