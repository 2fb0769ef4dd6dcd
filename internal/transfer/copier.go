package transfer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/remotectl/internal/command"
	"github.com/tOgg1/remotectl/internal/events"
	"github.com/tOgg1/remotectl/internal/logging"
	"github.com/tOgg1/remotectl/internal/models"
)

const (
	// DefaultBinary is the secure-copy tool invoked when none is configured.
	DefaultBinary = "pscp"

	// DefaultTimeout bounds a single invocation of the copy tool.
	DefaultTimeout = command.DefaultTimeout
)

// Direction selects which side of the copy is the source.
type Direction int

const (
	ToRemote Direction = iota
	FromRemote
)

func (d Direction) String() string {
	switch d {
	case ToRemote:
		return "to-remote"
	case FromRemote:
		return "from-remote"
	default:
		return "unknown"
	}
}

// Report describes a completed copy.
type Report struct {
	Direction   Direction          `json:"-" yaml:"-"`
	LocalPath   string             `json:"local_path" yaml:"local_path"`
	RemotePath  string             `json:"remote_path" yaml:"remote_path"`
	Attempts    int                `json:"attempts" yaml:"attempts"`
	Fingerprint HostKeyFingerprint `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Verified    bool               `json:"verified" yaml:"verified"`
}

// Copier moves files between the local machine and one remote host.
type Copier struct {
	params    models.ConnectionParameters
	runner    command.ResultCommander
	binary    string
	timeout   time.Duration
	verify    bool
	verifier  Verifier
	publisher events.Publisher
	logger    zerolog.Logger
}

// Option configures a Copier.
type Option func(*Copier)

// WithBinary overrides the copy tool.
func WithBinary(binary string) Option {
	return func(c *Copier) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds each invocation of the copy tool.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Copier) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithVerify enables or disables the post-copy listing.
func WithVerify(verify bool) Option {
	return func(c *Copier) {
		c.verify = verify
	}
}

// WithVerifier checks to-remote copies, typically through a MountVerifier.
// From-remote copies are always checked with LocalVerifier.
func WithVerifier(v Verifier) Option {
	return func(c *Copier) {
		c.verifier = v
	}
}

// WithPublisher sends transfer audit events to pub.
func WithPublisher(pub events.Publisher) Option {
	return func(c *Copier) {
		c.publisher = pub
	}
}

// NewCopier creates a Copier for params that invokes the copy tool through runner.
func NewCopier(params models.ConnectionParameters, runner command.ResultCommander, opts ...Option) *Copier {
	c := &Copier{
		params:  params,
		runner:  runner,
		binary:  DefaultBinary,
		timeout: DefaultTimeout,
		verify:  true,
		logger:  logging.WithHost(logging.Component("transfer"), params.Host()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Copy transfers one file. The first invocation runs in batch mode; when it
// fails with an unknown host key the offered fingerprint is trusted and the
// copy is retried exactly once. A failed verification is logged only.
func (c *Copier) Copy(ctx context.Context, localPath, remotePath string, direction Direction) (*Report, error) {
	if err := validateRequest(localPath, remotePath, direction); err != nil {
		return nil, err
	}

	req := Request{LocalPath: localPath, RemotePath: remotePath, Direction: direction}
	report := &Report{Direction: direction, LocalPath: localPath, RemotePath: remotePath}
	logger := c.logger.With().Str("direction", direction.String()).Str("local", localPath).Str("remote", remotePath).Logger()

	result, err := c.invoke(ctx, req, "", false)
	report.Attempts = 1
	if err != nil {
		return nil, c.fail(ctx, report, "", "", err)
	}

	if !result.Succeeded() {
		output := combinedOutput(result)
		fingerprint, ok := ExtractFingerprint(output)
		if !ok {
			return nil, c.fail(ctx, report, "", output, nil)
		}

		report.Fingerprint = fingerprint
		logger.Info().Str("fingerprint", string(fingerprint)).Msg("trusting offered host key")
		events.Emit(ctx, c.publisher, models.EventTypeHostKeyTrusted, models.EntityTypeTransfer, c.params.Host(), models.HostKeyTrustedPayload{
			Host:        c.params.Host(),
			Fingerprint: string(fingerprint),
		})

		result, err = c.invoke(ctx, req, fingerprint, true)
		report.Attempts = 2
		if err != nil || !result.Succeeded() {
			return nil, c.fail(ctx, report, fingerprint, combinedOutput(result), err)
		}
	}

	report.Verified = c.verifyCopy(ctx, req, logger)
	logger.Info().Int("attempts", report.Attempts).Bool("verified", report.Verified).Msg("transfer complete")
	events.Emit(ctx, c.publisher, models.EventTypeTransferCompleted, models.EntityTypeTransfer, c.params.Host(), models.TransferPayload{
		Direction:  direction.String(),
		LocalPath:  localPath,
		RemotePath: remotePath,
		Attempts:   report.Attempts,
	})
	return report, nil
}

func (c *Copier) invoke(ctx context.Context, req Request, fingerprint HostKeyFingerprint, check bool) (models.CommandResult, error) {
	opts := command.Options{
		Timeout: c.timeout,
		Check:   check,
		Retries: 1,
	}
	return c.runner.RunResult(ctx, c.CommandLine(req, fingerprint), opts)
}

// CommandLine builds the copy tool invocation for req. A non-empty
// fingerprint pins the host key.
func (c *Copier) CommandLine(req Request, fingerprint HostKeyFingerprint) string {
	args := []string{c.binary, "-batch", "-ssh", "-pw", command.Quote(c.params.Password())}
	if port := c.params.Port(); port != 0 && port != models.DefaultSSHPort {
		args = append(args, "-P", strconv.Itoa(port))
	}
	if fingerprint != "" {
		args = append(args, "-hostkey", command.Quote(string(fingerprint)))
	}

	remote := command.Quote(c.params.Target() + ":" + req.RemotePath)
	local := command.Quote(req.LocalPath)
	if req.Direction == ToRemote {
		args = append(args, local, remote)
	} else {
		args = append(args, remote, local)
	}
	return strings.Join(args, " ")
}

func (c *Copier) verifyCopy(ctx context.Context, req Request, logger zerolog.Logger) bool {
	if !c.verify {
		return false
	}

	verifier := c.verifier
	if req.Direction == FromRemote {
		verifier = LocalVerifier{}
	}
	if verifier == nil {
		logger.Debug().Msg("no verifier configured, skipping verification")
		return false
	}

	if err := verifier.Verify(ctx, req); err != nil {
		logger.Warn().Err(err).Str("file", req.FileName()).Msg("could not verify copied file")
		return false
	}
	logger.Debug().Str("file", req.FileName()).Msg("copied file verified")
	return true
}

func (c *Copier) fail(ctx context.Context, report *Report, fingerprint HostKeyFingerprint, output string, err error) error {
	terr := &TransferError{
		Direction:   report.Direction,
		Attempts:    report.Attempts,
		Fingerprint: fingerprint,
		Output:      logging.RedactSecrets(output, c.params.Password()),
		Err:         err,
	}
	c.logger.Error().Err(terr).Str("direction", report.Direction.String()).Msg("transfer failed")
	events.Emit(ctx, c.publisher, models.EventTypeTransferFailed, models.EntityTypeTransfer, c.params.Host(), models.TransferPayload{
		Direction:  report.Direction.String(),
		LocalPath:  report.LocalPath,
		RemotePath: report.RemotePath,
		Attempts:   report.Attempts,
		Error:      terr.Error(),
	})
	return terr
}

func validateRequest(localPath, remotePath string, direction Direction) error {
	var verrs models.ValidationErrors
	if strings.TrimSpace(localPath) == "" {
		verrs.AddMessage("local_path", "must not be empty")
	}
	if strings.TrimSpace(remotePath) == "" {
		verrs.AddMessage("remote_path", "must not be empty")
	}
	if direction != ToRemote && direction != FromRemote {
		verrs.AddMessage("direction", fmt.Sprintf("unknown direction %d", int(direction)))
	}
	return verrs.Err()
}

// combinedOutput joins both streams; the copy tool prints the host key
// prompt on stderr but some builds write it to stdout.
func combinedOutput(result models.CommandResult) string {
	return strings.TrimSpace(result.Stdout + "\n" + result.Stderr)
}
