package visa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

const (
	defaultSysfsRoot = "/sys"
	defaultDevRoot   = "/dev"
)

// WithStaticResources registers resources that cannot be enumerated, such as LAN instruments
func WithStaticResources(resources ...string) func(*ResourceManager) {
	return func(rm *ResourceManager) {
		rm.static = append(rm.static, resources...)
	}
}

// WithSysfsRoot sets the sysfs mount point used for USB discovery
func WithSysfsRoot(path string) func(*ResourceManager) {
	return func(rm *ResourceManager) {
		rm.sysfsRoot = path
	}
}

// WithDevRoot sets the directory holding device nodes
func WithDevRoot(path string) func(*ResourceManager) {
	return func(rm *ResourceManager) {
		rm.devRoot = path
	}
}

// ResourceManager enumerates the instruments reachable from this host and opens sessions to them
type ResourceManager struct {
	static    []string
	sysfsRoot string
	devRoot   string

	mu       sync.Mutex
	usbNodes map[string]string // upper-case USB resource -> device node

	logger *slog.Logger
}

// NewResourceManager creates a new ResourceManager
func NewResourceManager(logger *slog.Logger, options ...func(*ResourceManager)) *ResourceManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rm := ResourceManager{
		sysfsRoot: defaultSysfsRoot,
		devRoot:   defaultDevRoot,
		usbNodes:  make(map[string]string),
		logger:    logger,
	}

	for _, option := range options {
		option(&rm)
	}

	return &rm
}

// ListResources returns the sorted resources matching the VISA search expression
func (rm *ResourceManager) ListResources(ctx context.Context, pattern string) ([]string, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	all := slices.Clone(rm.static)
	all = append(all, rm.discover()...)
	slices.Sort(all)
	all = slices.Compact(all)

	var matches []string
	for _, resource := range all {
		if re.MatchString(resource) {
			matches = append(matches, resource)
		}
	}

	rm.logger.Debug("resources listed",
		slog.String("pattern", pattern),
		slog.Int("discovered", len(all)),
		slog.Any("matches", matches))

	return matches, nil
}

// FindResource returns the first resource matching the VISA search expression
func (rm *ResourceManager) FindResource(ctx context.Context, pattern string) (string, error) {
	matches, err := rm.ListResources(ctx, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: nothing matches %q", ErrResourceNotFound, pattern)
	}

	return matches[0], nil
}

// Open opens a session to the resource.
// USB resources default to an empty write termination, other interfaces to "\n".
func (rm *ResourceManager) Open(ctx context.Context, name string, options ...func(*Session)) (*Session, error) {
	r, err := ParseResource(name)
	if err != nil {
		return nil, err
	}

	var conn io.ReadWriteCloser
	var s *Session
	switch r.Interface {
	case InterfaceTCPIP:
		s = newSession(name, "\n", options...)
		conn, err = dialSocket(ctx, r)

	case InterfaceUSB:
		s = newSession(name, "", options...)

		var node string
		if node, err = rm.usbNode(name); err == nil {
			conn, err = openUSBTMC(node, s.timeout)
		}

	case InterfaceASRL:
		s = newSession(name, "\n", options...)
		conn, err = openSerial(r, s.baudRate, s.timeout)

	default:
		return nil, fmt.Errorf("opening %s: %w", name, ErrUnsupported)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	s.attach(conn)

	rm.logger.Info("session opened",
		slog.String("resource", name),
		slog.String("interface", string(r.Interface)),
		slog.Duration("timeout", s.timeout))

	return s, nil
}

func (rm *ResourceManager) usbNode(name string) (string, error) {
	key := strings.ToUpper(name)

	rm.mu.Lock()
	node, ok := rm.usbNodes[key]
	rm.mu.Unlock()
	if ok {
		return node, nil
	}

	rm.discover()

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if node, ok = rm.usbNodes[key]; ok {
		return node, nil
	}
	return "", fmt.Errorf("%w: no USBTMC device for %s", ErrResourceNotFound, name)
}

func (rm *ResourceManager) registerUSB(name, node string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.usbNodes[strings.ToUpper(name)] = node
}
