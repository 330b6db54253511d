// Package env composes the environment handed to launched services:
// an optional OS-environment base, global overrides from the config, and
// per-service overrides, with simple ${VAR} expansion.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

type Var map[string]string

type Env struct {
	Var  Var // global variables (K->V)
	base Var // cached base, usually the OS environment
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.base = base
}

// Set sets a global variable K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// SetAll applies a list of "K=V" entries as global variables; malformed
// entries are skipped.
func (e *Env) SetAll(kvs []string) {
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}
}

// Merge composes the final environment: base (empty unless FromOS was
// called), then global overrides, then perService overrides. ${VAR}
// references are expanded against the composed map, non-recursively.
func (e *Env) Merge(perService []string) []string {
	m := make(Var, len(e.base)+len(e.Var)+len(perService))
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k != "" {
			m[k] = v
		}
	}
	for _, kv := range perService {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

func expand(s string, m Var) string {
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}

// LoadFile parses a .env file with KEY=VALUE lines (no export keyword,
// no quoting). Lines starting with # are ignored.
func LoadFile(path string) (Var, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(Var)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, nil
}
