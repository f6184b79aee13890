package bridge

import (
	"context"
	"fmt"
	"sort"

	"github.com/viant/sqlite-vptree/convert"
	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
)

// Command names.
const (
	CmdCreate                = "create"
	CmdDestroy               = "destroy"
	CmdAdd                   = "add"
	CmdAddMany               = "add_many"
	CmdSize                  = "size"
	CmdNearestNeighbor       = "nearest_neighbor"
	CmdNearestNeighborApprox = "nearest_neighbor_approx"
	CmdNeighborhood          = "neighborhood"
	CmdIncnnBegin            = "incnn_begin"
	CmdIncnnNext             = "incnn_next"
	CmdIncnnEnd              = "incnn_end"
)

type command struct {
	arity int
	run   func(b *Bridge, ctx context.Context, args []Value) (Value, error)
}

var commands = map[string]command{
	CmdCreate: {arity: 1, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := b.Create(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return h.Int64(), nil
	}},
	CmdDestroy: {arity: 1, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		return nil, b.Destroy(ctx, h)
	}},
	CmdAdd: {arity: 2, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		return nil, b.Add(ctx, h, args[1])
	}},
	CmdAddMany: {arity: 2, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		return nil, b.AddMany(ctx, h, args[1])
	}},
	CmdSize: {arity: 1, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		n, err := b.Size(h)
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	}},
	CmdNearestNeighbor: {arity: 3, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		k, err := convert.ToInt(args[2])
		if err != nil {
			return nil, fmt.Errorf("vptree: k: %w", err)
		}
		neighbors, err := b.NearestNeighbor(ctx, h, args[1], k)
		if err != nil {
			return nil, err
		}
		return b.list(neighbors)
	}},
	CmdNearestNeighborApprox: {arity: 4, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		k, err := convert.ToInt(args[2])
		if err != nil {
			return nil, fmt.Errorf("vptree: k: %w", err)
		}
		maxNodes, err := convert.ToInt(args[3])
		if err != nil {
			return nil, fmt.Errorf("vptree: max_nodes: %w", err)
		}
		neighbors, err := b.NearestNeighborApprox(ctx, h, args[1], k, maxNodes)
		if err != nil {
			return nil, err
		}
		return b.list(neighbors)
	}},
	CmdNeighborhood: {arity: 3, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		radius, err := convert.ToFloat64(args[2])
		if err != nil {
			return nil, fmt.Errorf("vptree: radius: %w", err)
		}
		neighbors, err := b.Neighborhood(ctx, h, args[1], radius)
		if err != nil {
			return nil, err
		}
		return b.list(neighbors)
	}},
	CmdIncnnBegin: {arity: 2, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, err := toHandle(args[0])
		if err != nil {
			return nil, err
		}
		ih, err := b.IncnnBegin(ctx, h, args[1])
		if err != nil {
			return nil, err
		}
		return ih.Int64(), nil
	}},
	CmdIncnnNext: {arity: 2, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, ih, err := toHandles(args[0], args[1])
		if err != nil {
			return nil, err
		}
		nb, exhausted, err := b.IncnnNext(ctx, h, ih)
		if err != nil {
			return nil, err
		}
		if exhausted {
			return b.host.Exhausted(), nil
		}
		return b.host.Duplicate(nb.Element)
	}},
	CmdIncnnEnd: {arity: 2, run: func(b *Bridge, ctx context.Context, args []Value) (Value, error) {
		h, ih, err := toHandles(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return nil, b.IncnnEnd(ctx, h, ih)
	}},
}

// Commands returns the known command names, sorted.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs command with positional args. The argument count is checked
// before anything else, so a malformed call never changes state.
func (b *Bridge) Dispatch(ctx context.Context, name string, args ...Value) (result Value, err error) {
	cmd, ok := commands[name]
	if !ok {
		b.metrics.CommandsTotal.WithLabelValues("unknown", "error").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			b.logger.Debug("command failed", "command", name, "error", err)
		}
		b.metrics.CommandsTotal.WithLabelValues(name, status).Inc()
	}()
	if len(args) != cmd.arity {
		return nil, &ArgCountError{Command: name, Expected: cmd.arity, Got: len(args)}
	}
	return cmd.run(b, ctx, args)
}

// Call is Dispatch for hosts that pass the command name as the first value.
func (b *Bridge) Call(ctx context.Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: missing command", ErrUnknownCommand)
	}
	name, err := convert.ToString(args[0])
	if err != nil {
		return nil, fmt.Errorf("vptree: command: %w", err)
	}
	return b.Dispatch(ctx, name, args[1:]...)
}

func (b *Bridge) list(neighbors []index.Neighbor) (Value, error) {
	values := make([]Value, len(neighbors))
	for i, nb := range neighbors {
		dup, err := b.host.Duplicate(nb.Element)
		if err != nil {
			return nil, err
		}
		values[i] = dup
	}
	return b.host.List(values)
}

func toHandle(v Value) (handle.Handle, error) {
	i, err := convert.ToInt64(v)
	if err != nil {
		return 0, fmt.Errorf("vptree: handle: %w", err)
	}
	return handle.FromInt64(i), nil
}

func toHandles(a, b Value) (handle.Handle, handle.Handle, error) {
	h, err := toHandle(a)
	if err != nil {
		return 0, 0, err
	}
	ih, err := toHandle(b)
	return h, ih, err
}
