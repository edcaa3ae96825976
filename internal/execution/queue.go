package execution

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"ftr/internal/domain"
)

// resolveLimit caps concurrent file reads while resolving a run's selection
const resolveLimit = 8

// RunRequest selects the nodes of one run
type RunRequest struct {
	// Include lists the ids to run; nil runs every top-level node
	Include []string
	// Exclude lists ids skipped along with their subtrees
	Exclude []string
	// FailFast skips the rest of the queue after the first failed test
	FailFast bool
}

// queue is the ordered list of nodes a run executes, plus the unresolved
// files that must be scanned before the first of them starts
type queue struct {
	items      []string
	unresolved []string
	excluded   map[string]bool
}

// collect walks the request's ids in order. Selected ids are queued; directories are
// walked to find unresolved files but their contents are not queued, since the
// directory's single invocation covers them.
func (c *Controller) collect(req RunRequest) *queue {
	q := &queue{excluded: make(map[string]bool, len(req.Exclude))}
	for _, id := range req.Exclude {
		q.excluded[id] = true
	}

	include := req.Include
	if include == nil {
		include = c.forest.Roots()
	}
	c.visit(q, include, true)
	return q
}

func (c *Controller) visit(q *queue, ids []string, shouldQueue bool) {
	for _, id := range ids {
		if q.excluded[id] {
			c.logger.Debug("excluded by request", "id", id)
			continue
		}
		n, ok := c.forest.Get(id)
		if !ok {
			c.logger.Debug("requested node not found", "id", id)
			continue
		}

		switch {
		case n.Kind == domain.KindFile && !n.Resolved:
			c.logger.Debug("resolving test file", "id", id)
			q.unresolved = append(q.unresolved, id)
		case n.Kind == domain.KindDirectory:
			c.logger.Debug("resolving test tree", "id", id)
			c.visit(q, n.Children, false)
		}

		if shouldQueue {
			q.items = append(q.items, id)
		}
	}
}

// split replaces every queued node holding an excluded descendant with its
// remaining children, recursively, so no invocation covers an excluded node.
// It runs after resolve, once the contracts and tests of lazy files exist.
// Nodes that vanished while resolving are dropped.
func (c *Controller) split(q *queue) {
	partial := make(map[string]bool)
	for id := range q.excluded {
		n, ok := c.forest.Get(id)
		for ok && n.Parent != "" {
			partial[n.Parent] = true
			n, ok = c.forest.Get(n.Parent)
		}
	}

	var items []string
	var expand func(id string)
	expand = func(id string) {
		if q.excluded[id] {
			c.logger.Debug("excluded by request", "id", id)
			return
		}
		n, ok := c.forest.Get(id)
		if !ok {
			c.logger.Debug("queued node no longer exists", "id", id)
			return
		}
		if !partial[id] {
			items = append(items, id)
			return
		}
		c.logger.Debug("running children around excluded nodes", "id", id)
		for _, cid := range n.Children {
			expand(cid)
		}
	}
	for _, id := range q.items {
		expand(id)
	}
	q.items = items
}

// resolve reads every unresolved file concurrently, then applies the scans in queue order.
// Read failures become file errors.
func (c *Controller) resolve(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	type read struct {
		path    string
		content []byte
		err     error
	}
	reads := make([]read, len(ids))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i, id := range ids {
		n, ok := c.forest.Get(id)
		if !ok {
			continue
		}
		path := n.Path
		reads[i].path = path
		g.Go(func() error {
			reads[i].content, reads[i].err = os.ReadFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range reads {
		if r.path == "" {
			continue
		}
		if r.err != nil {
			c.builder.MarkError(c.forest, r.path, r.err)
			continue
		}
		if _, err := c.builder.Apply(c.forest, r.path, string(r.content)); err != nil {
			return err
		}
	}
	return nil
}
