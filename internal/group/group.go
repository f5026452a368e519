// Package group implements process groups and pipeline bookkeeping between
// managed children: when a process is added to a pipeline group after
// another, a source → sink edge is recorded in the process table,
// generalizing the spirit of the teacher's pkg/remuxcmd command-composition
// helpers (which build argv pipelines). Recording an edge does not join the
// two processes' streams; Wire is the copy helper for that and is not
// called from the add-to-group path.
package group

import (
	"io"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/model"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"go.uber.org/zap"
)

type Manager struct {
	log   *zap.Logger
	table *proctable.Table
}

func New(table *proctable.Table, log *zap.Logger) *Manager {
	return &Manager{log: log.Named("group"), table: table}
}

// CreateGroup implements processCreateGroup.
func (m *Manager) CreateGroup(name string, pipeline bool) *model.ProcessGroup {
	return m.table.CreateGroup(name, pipeline)
}

// AddToGroup implements processAddToGroup. When the owning group is a
// pipeline and this is not the first member, an edge from the previous
// member to this one is recorded; no bytes are copied between them.
func (m *Manager) AddToGroup(groupID string, pid uint32) error {
	if err := m.table.AddToGroup(groupID, pid); err != nil {
		return err
	}
	g, ok := m.table.GetGroup(groupID)
	if !ok {
		return errs.New(errs.GroupNotFound, "no such group")
	}
	if !g.Pipeline || len(g.Processes) < 2 {
		return nil
	}
	sourcePID := g.Processes[len(g.Processes)-2]
	targetPID := pid
	return m.table.ConnectPipeline(groupID, sourcePID, targetPID)
}

// Wire copies a source's stdout reader into a sink's stdin writer. It runs
// the copy in a background goroutine and closes the sink's stdin on EOF.
// No other package of the supervisor calls it.
func Wire(stdout io.Reader, stdin io.WriteCloser) {
	go func() {
		defer stdin.Close()
		_, _ = io.Copy(stdin, stdout)
	}()
}

func (m *Manager) GetGroup(groupID string) (*model.ProcessGroup, bool) {
	return m.table.GetGroup(groupID)
}
