package builder

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/tinygo-org/dualboot/layout"
)

// Logger receives progress messages with optional key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// PlanOptions configure the build plan.
type PlanOptions struct {
	// Dir holds generated targets and build outputs.
	Dir string

	// TinyGo is the command used to invoke TinyGo, split like a shell would,
	// for example "tinygo" or "docker run --rm -v .:/src tinygo/tinygo tinygo".
	TinyGo string

	// Format is the output extension: "hex" (default), "bin" or "elf".
	Format string

	// ExtraArgs are added to every build, after "build".
	ExtraArgs string
}

// Command is one TinyGo invocation of the plan.
type Command struct {
	Program string
	Args    []string
	Output  string
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Plan returns the TinyGo build commands for every program of the layout. The
// target files are expected in opts.Dir, see WriteTargets.
func Plan(l *layout.Layout, opts PlanOptions) ([]Command, error) {
	if opts.TinyGo == "" {
		opts.TinyGo = "tinygo"
	}
	if opts.Format == "" {
		opts.Format = "hex"
	}
	prefix, err := shlex.Split(opts.TinyGo)
	if err != nil {
		return nil, err
	}
	extra, err := shlex.Split(opts.ExtraArgs)
	if err != nil {
		return nil, err
	}
	if len(prefix) == 0 {
		return nil, errEmptyPlan
	}

	var cmds []Command
	for _, p := range Programs(l) {
		output := filepath.Join(opts.Dir, p.Name+"."+opts.Format)
		args := append([]string{}, prefix...)
		args = append(args, "build")
		args = append(args, extra...)
		args = append(args, p.BuildFlags...)
		args = append(args, "-target", targetPath(opts.Dir, p), "-o", output)
		flags, err := p.LDFlags()
		if err != nil {
			return nil, err
		}
		if len(flags) != 0 {
			args = append(args, "-ldflags", strings.Join(flags, " "))
		}
		args = append(args, p.Package)
		cmds = append(cmds, Command{
			Program: p.Name,
			Args:    args,
			Output:  output,
		})
	}
	return cmds, nil
}

// Run executes the plan in the module root dir. All programs are attempted;
// failures are returned together as a *MultiError of *ProgramError.
func Run(ctx context.Context, cmds []Command, dir string, logger Logger) error {
	if len(cmds) == 0 {
		return errEmptyPlan
	}
	var errs []error
	for _, c := range cmds {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		logger.Debug("building", "program", c.Program, "cmd", c.String())
		cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
		cmd.Dir = dir
		output, err := cmd.CombinedOutput()
		if err != nil {
			logger.Error("build failed", "program", c.Program, "err", err)
			errs = append(errs, &ProgramError{Program: c.Program, Err: err, Output: output})
			continue
		}
		logger.Info("built", "program", c.Program, "output", c.Output, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	if len(errs) != 0 {
		return &MultiError{Errs: errs}
	}
	return nil
}
