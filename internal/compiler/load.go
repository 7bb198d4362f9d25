package compiler

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/service"
)

// CompileServices compiles every field under "service" in v. A spec that
// fails to compile is reported and skipped; the others are still returned.
func CompileServices(v cue.Value) ([]*ServiceSpec, []error) {
	sv := v.LookupPath(cue.ParsePath("service"))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []*ServiceSpec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileService(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("service.%s: %w", iter.Label(), err))
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// CompileFile compiles the services declared in one CUE file.
func CompileFile(path string) ([]*ServiceSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	v := cuecontext.New().CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	specs, errs := CompileServices(v)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%s: no services declared", path)
	}
	return specs, nil
}

// Register parses the service spec's descriptor and adds it to cat. A zero spec
// timeout is replaced by defaultTimeout. Ambiguous parameters do not stop
// registration; they come back in the result's diagnostics.
func (s *ServiceSpec) Register(cat *service.Catalog, defaultTimeout time.Duration) (*descriptor.Result, error) {
	res, err := s.Descriptor()
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", s.Name, err)
	}
	cfg := s.Config
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if err := cat.Add(res.Descriptor, cfg); err != nil {
		return nil, err
	}
	return res, nil
}
