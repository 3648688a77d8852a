// Package deploy orchestrates application deployments: bundle detection,
// image builds or compose stand-ups, routing label generation, and record
// persistence. It is the only writer of application records tied to engine
// mutations; the rule throughout is that a record never claims success for
// an engine mutation that did not happen.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lancereinsmith/milkcrate/internal/core/compose"
	"github.com/lancereinsmith/milkcrate/internal/core/deployment"
	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	corestatus "github.com/lancereinsmith/milkcrate/internal/core/status"
	"github.com/lancereinsmith/milkcrate/internal/shell/bundle"
	"github.com/lancereinsmith/milkcrate/internal/shell/composecli"
	"github.com/lancereinsmith/milkcrate/internal/shell/docker"
	"github.com/lancereinsmith/milkcrate/internal/shell/store"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrInvalidRequest = errors.New("invalid deployment request")
	ErrNameTaken      = errors.New("application name already in use")
	ErrRouteTaken     = errors.New("route already in use")
	ErrAppNotFound    = errors.New("application not found")
)

// DefaultNetwork is the shared proxy network applications attach to.
const DefaultNetwork = "milkcrate-traefik"

// =============================================================================
// Request / Result Types
// =============================================================================

// Request describes one deployment or update of an application bundle. The
// bundle directory must already be extracted (see bundle.ExtractZip).
type Request struct {
	BundleDir    string
	Name         string
	Route        string
	Network      string // optional; DefaultNetwork when empty
	Public       bool
	VolumeMounts map[string]domain.VolumeMountSpec
}

// Result reports a successful deployment.
type Result struct {
	App         *domain.App
	ContainerID string
	ImageTag    string // empty for compose deployments
}

// outcome carries what a kind-specific deploy produced, before persistence.
type outcome struct {
	containerID string
	imageTag    string
	port        int
	mainService string // compose only
	composeFile string // compose only
}

// Refresher triggers an out-of-band status reconciliation for an app. The
// deployer fires it after persisting a record so the transitional status is
// replaced without blocking the caller.
type Refresher interface {
	TriggerApp(appID string)
}

// =============================================================================
// Deployer
// =============================================================================

// Deployer coordinates the full deployment flow for both Dockerfile and
// compose bundles.
type Deployer struct {
	docker      docker.Client
	compose     *composecli.Runner
	store       store.Store
	refresher   Refresher
	logger      *slog.Logger
	network     string
	enableHTTPS bool
	locks       *nameLocks
	now         func() time.Time
}

// Config carries the deployment policy knobs.
type Config struct {
	Network     string // shared proxy network; DefaultNetwork when empty
	EnableHTTPS bool
}

// NewDeployer creates a deployer.
func NewDeployer(d docker.Client, runner *composecli.Runner, st store.Store, cfg Config, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	return &Deployer{
		docker:      d,
		compose:     runner,
		store:       st,
		logger:      logger,
		network:     cfg.Network,
		enableHTTPS: cfg.EnableHTTPS,
		locks:       newNameLocks(),
		now:         time.Now,
	}
}

// SetRefresher wires the post-deploy status refresh trigger. Optional; the
// background refresher reconciles on its own schedule regardless.
func (d *Deployer) SetRefresher(r Refresher) {
	d.refresher = r
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy builds and launches a new application from an extracted bundle,
// then persists its record with a transitional status. Name and route
// uniqueness are checked before any engine mutation.
func (d *Deployer) Deploy(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	unlock := d.locks.acquire(req.Name)
	defer unlock()

	if err := d.checkAvailable(ctx, req.Name, req.Route); err != nil {
		return nil, err
	}

	det, err := bundle.DetectKind(req.BundleDir)
	if err != nil {
		return nil, err
	}

	network := req.Network
	if network == "" {
		network = d.network
	}

	var out outcome
	switch det.Kind {
	case domain.KindCompose:
		out, err = d.deployCompose(ctx, req, det, network)
	default:
		out, err = d.deployDockerfile(ctx, req, network, deployment.DefaultInternalPort)
	}
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	app := &domain.App{
		ID:           uuid.NewString(),
		Name:         req.Name,
		ContainerID:  out.containerID,
		ImageTag:     out.imageTag,
		Route:        req.Route,
		InternalPort: out.port,
		Status:       string(corestatus.StatusDeploying),
		Kind:         det.Kind,
		ComposeFile:  out.composeFile,
		MainService:  out.mainService,
		VolumeMounts: req.VolumeMounts,
		Public:       req.Public,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := d.store.InsertApp(ctx, app); err != nil {
		return nil, err
	}

	d.logger.Info("application deployed",
		"app", app.Name, "kind", app.Kind, "container_id", out.containerID)
	d.notifyRefresh(app.ID)

	return &Result{App: app, ContainerID: out.containerID, ImageTag: out.imageTag}, nil
}

// =============================================================================
// Update
// =============================================================================

// Update replaces a deployed application's workload with a new bundle. The
// existing record is mutated in place; if the new bundle changes deployment
// kind or main service, the stored values are superseded.
func (d *Deployer) Update(ctx context.Context, appID string, req Request) (*Result, error) {
	app, err := d.store.GetApp(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAppNotFound, appID)
		}
		return nil, err
	}

	unlock := d.locks.acquire(app.Name)
	defer unlock()

	if err := d.store.UpdateAppStatus(ctx, app.ID, corestatus.StatusUpdating); err != nil {
		return nil, err
	}

	// Updates always keep the app's identity; only the workload changes.
	req.Name = app.Name
	req.Route = app.Route
	if req.VolumeMounts == nil {
		req.VolumeMounts = app.VolumeMounts
	}

	det, err := bundle.DetectKind(req.BundleDir)
	if err != nil {
		d.markError(ctx, app.ID)
		return nil, err
	}

	network := req.Network
	if network == "" {
		network = d.network
	}

	d.teardownPrevious(ctx, app, req.BundleDir)

	var out outcome
	switch det.Kind {
	case domain.KindCompose:
		out, err = d.deployCompose(ctx, req, det, network)
	default:
		out, err = d.deployDockerfile(ctx, req, network, app.InternalPort)
	}
	if err != nil {
		d.markError(ctx, app.ID)
		return nil, err
	}

	if app.ImageTag != "" && app.ImageTag != out.imageTag {
		if rmErr := d.docker.RemoveImage(ctx, app.ImageTag, true); rmErr != nil {
			d.logger.Debug("previous image removal failed", "image", app.ImageTag, "error", rmErr)
		}
	}

	app.ContainerID = out.containerID
	app.ImageTag = out.imageTag
	app.InternalPort = out.port
	app.Kind = det.Kind
	app.ComposeFile = out.composeFile
	app.MainService = out.mainService
	app.VolumeMounts = req.VolumeMounts
	app.Status = string(corestatus.StatusDeploying)
	app.UpdatedAt = d.now().UTC()
	if err := d.store.UpdateApp(ctx, app); err != nil {
		return nil, err
	}

	d.logger.Info("application updated",
		"app", app.Name, "kind", app.Kind, "container_id", out.containerID)
	d.notifyRefresh(app.ID)

	return &Result{App: app, ContainerID: out.containerID, ImageTag: out.imageTag}, nil
}

// =============================================================================
// Delete
// =============================================================================

// Delete tears down an application's workload and removes its record.
// Engine-side teardown is best-effort; the record is removed regardless so a
// half-dead deployment cannot pin its name and route forever.
func (d *Deployer) Delete(ctx context.Context, appID string) error {
	app, err := d.store.GetApp(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAppNotFound, appID)
		}
		return err
	}

	unlock := d.locks.acquire(app.Name)
	defer unlock()

	if err := d.store.UpdateAppStatus(ctx, app.ID, corestatus.StatusDeleting); err != nil {
		d.logger.Warn("status update failed", "app", app.Name, "error", err)
	}

	d.teardownPrevious(ctx, app, "")

	if app.ImageTag != "" {
		if rmErr := d.docker.RemoveImage(ctx, app.ImageTag, true); rmErr != nil {
			d.logger.Debug("image removal failed", "image", app.ImageTag, "error", rmErr)
		}
	}

	if err := d.store.DeleteApp(ctx, appID); err != nil {
		return err
	}
	d.logger.Info("application deleted", "app", app.Name)
	return nil
}

// =============================================================================
// Dockerfile Path
// =============================================================================

func (d *Deployer) deployDockerfile(ctx context.Context, req Request, network string, fallbackPort int) (outcome, error) {
	imageTag := deployment.ImageTag(req.Name, d.now())
	if err := d.docker.BuildImage(ctx, req.BundleDir, docker.BuildOptions{
		Tag:        imageTag,
		Dockerfile: "Dockerfile",
	}); err != nil {
		return outcome{}, err
	}

	port := fallbackPort
	if exposed, err := d.docker.ImageExposedPorts(ctx, imageTag); err == nil {
		port = deployment.SelectInternalPort(exposed)
	} else {
		d.logger.Warn("exposed port lookup failed, keeping previous port",
			"image", imageTag, "port", port, "error", err)
	}

	d.removeExistingContainer(ctx, deployment.ContainerName(req.Name))

	if err := d.docker.EnsureNetwork(ctx, network); err != nil {
		return outcome{}, err
	}

	spec := d.containerSpec(req, imageTag, network, port)
	containerID, err := d.docker.CreateContainer(ctx, spec)
	if err != nil {
		return outcome{}, err
	}
	if err := d.docker.StartContainer(ctx, containerID); err != nil {
		return outcome{}, err
	}

	return outcome{containerID: containerID, imageTag: imageTag, port: port}, nil
}

// removeExistingContainer stops and removes a container by its conventional
// name. Absence is not an error; nothing here may fail the deployment.
func (d *Deployer) removeExistingContainer(ctx context.Context, name string) {
	info, err := d.docker.ContainerByName(ctx, name)
	if err != nil {
		if !errors.Is(err, docker.ErrContainerNotFound) {
			d.logger.Warn("container lookup failed", "container", name, "error", err)
		}
		return
	}

	if err := d.docker.StopContainer(ctx, info.ID, &stopTimeout); err != nil {
		d.logger.Debug("container stop failed", "container", name, "error", err)
	}
	if err := d.docker.RemoveContainer(ctx, info.ID, docker.RemoveOptions{Force: true}); err != nil {
		d.logger.Warn("container removal failed", "container", name, "error", err)
	}
}

// =============================================================================
// Compose Path
// =============================================================================

func (d *Deployer) deployCompose(ctx context.Context, req Request, det bundle.Detection, network string) (outcome, error) {
	data, err := os.ReadFile(filepath.Join(req.BundleDir, det.ComposeFile))
	if err != nil {
		return outcome{}, fmt.Errorf("read compose file: %w", err)
	}

	project, err := compose.Parse(data)
	if err != nil {
		return outcome{}, err
	}
	if err := compose.ValidateForDeployment(project); err != nil {
		return outcome{}, err
	}

	main := project.MainService()
	port := compose.ServicePort(main.Node)

	labels := d.routingLabels(req.Name, req.Route, port)
	if err := compose.MergeRouting(project, main.Name, labels, network); err != nil {
		return outcome{}, err
	}

	merged, err := project.Marshal()
	if err != nil {
		return outcome{}, err
	}
	derivedPath := filepath.Join(req.BundleDir, deployment.DerivedComposeFile)
	if err := os.WriteFile(derivedPath, merged, 0o644); err != nil {
		return outcome{}, fmt.Errorf("write derived compose file: %w", err)
	}

	// The merged definition declares the proxy network as external, so it
	// must exist before the stack comes up.
	if err := d.docker.EnsureNetwork(ctx, network); err != nil {
		return outcome{}, err
	}

	projectName := deployment.ProjectName(req.Name)
	if err := d.compose.Down(ctx, projectName, deployment.DerivedComposeFile, req.BundleDir); err != nil {
		d.logger.Warn("previous stack teardown failed", "project", projectName, "error", err)
	}

	if err := d.compose.Up(ctx, projectName, deployment.DerivedComposeFile, req.BundleDir); err != nil {
		return outcome{}, err
	}

	containerID, err := d.compose.ServiceContainerID(ctx, projectName, deployment.DerivedComposeFile, req.BundleDir, main.Name)
	if err != nil {
		return outcome{}, err
	}

	return outcome{
		containerID: containerID,
		port:        port,
		mainService: main.Name,
		composeFile: det.ComposeFile,
	}, nil
}

// =============================================================================
// Helpers
// =============================================================================

// teardownPrevious removes whatever workload the stored record points at,
// according to its recorded kind. Best-effort throughout.
func (d *Deployer) teardownPrevious(ctx context.Context, app *domain.App, workDir string) {
	if app.Kind == domain.KindCompose {
		projectName := deployment.ProjectName(app.Name)
		if err := d.compose.Down(ctx, projectName, "", workDir); err != nil {
			d.logger.Warn("stack teardown failed", "project", projectName, "error", err)
		}
		return
	}
	d.removeExistingContainer(ctx, deployment.ContainerName(app.Name))
}

// checkAvailable enforces name and route uniqueness before any engine
// mutation begins.
func (d *Deployer) checkAvailable(ctx context.Context, name, route string) error {
	if _, err := d.store.GetAppByName(ctx, name); err == nil {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if _, err := d.store.GetAppByRoute(ctx, route); err == nil {
		return fmt.Errorf("%w: %s", ErrRouteTaken, route)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (d *Deployer) markError(ctx context.Context, appID string) {
	if err := d.store.UpdateAppStatus(ctx, appID, corestatus.StatusError); err != nil {
		d.logger.Warn("error status update failed", "app_id", appID, "error", err)
	}
}

func (d *Deployer) notifyRefresh(appID string) {
	if d.refresher != nil {
		d.refresher.TriggerApp(appID)
	}
}

func validateRequest(req Request) error {
	if req.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if req.Route == "" || !strings.HasPrefix(req.Route, "/") {
		return fmt.Errorf("%w: route must start with /", ErrInvalidRequest)
	}
	if req.BundleDir == "" {
		return fmt.Errorf("%w: bundle directory is required", ErrInvalidRequest)
	}
	return nil
}
