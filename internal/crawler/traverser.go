package crawler

import (
	"log/slog"

	"github.com/sematext/imap-email-extractor/internal/mailbox"
)

// OpenFolder is a folder the traverser has opened for reading.
type OpenFolder struct {
	mailbox.Folder
	Status mailbox.Status
}

// Traverser walks the folder tree depth first, discovering children as it
// goes. Only one folder is open at a time.
type Traverser struct {
	session mailbox.Session
	policy  *FolderPolicy
	work    Worklist
	open    *OpenFolder
	log     *slog.Logger
}

// NewTraverser starts a traversal at the store's root folder.
func NewTraverser(session mailbox.Session, policy *FolderPolicy, logger *slog.Logger) *Traverser {
	return NewTraverserFrom(session, policy, NewWorklist(mailbox.Root), logger)
}

// NewTraverserFrom continues a traversal from a worklist taken from an
// earlier traverser, possibly over a different session.
func NewTraverserFrom(session mailbox.Session, policy *FolderPolicy, work Worklist, logger *slog.Logger) *Traverser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Traverser{session: session, policy: policy, work: work, log: logger}
}

// Next opens and returns the next folder whose messages should be read.
// It returns nil once the tree is exhausted. The previously returned
// folder is closed first.
//
// A failing folder has already been taken off the worklist when the error
// is returned, so calling Next again moves past it.
func (t *Traverser) Next() (*OpenFolder, error) {
	t.closeOpen()

	for {
		f, rest, ok := t.work.Pop()
		if !ok {
			return nil, nil
		}
		t.work = rest

		if f.HoldsChildren {
			children, err := t.session.List(f)
			if err != nil {
				return nil, &FolderError{Kind: ErrFolderList, Path: f.Path, Err: err}
			}
			t.work = t.work.PushAll(children)
		}

		if f.Path == "" || !f.HoldsMessages {
			continue
		}
		if !t.policy.Included(f.Path) {
			t.log.Debug("Skipping folder", "folder", f.Path, "excluded", t.policy.Excluded(f.Path))
			continue
		}

		status, err := t.session.Open(f.Path)
		if err != nil {
			return nil, &FolderError{Kind: ErrFolderOpen, Path: f.Path, Err: err}
		}
		t.open = &OpenFolder{Folder: f, Status: status}
		return t.open, nil
	}
}

// SeekTo rebuilds the worklist so that path is the next folder visited.
// Only the ancestors of path are listed again; at each level the siblings
// after the branch leading to path are kept, everything before it counts
// as visited. The worklist is left unchanged when SeekTo fails.
func (t *Traverser) SeekTo(path string) error {
	t.closeOpen()

	var work Worklist
	parent := mailbox.Root
	for {
		children, err := t.session.List(parent)
		if err != nil {
			return &FolderError{Kind: ErrFolderList, Path: parent.Path, Err: err}
		}

		idx := -1
		for i, c := range children {
			if c.Path == path || c.IsAncestorOf(path) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &FolderError{Kind: ErrFolderNotFound, Path: path, Err: errNoSuchFolder}
		}

		work = work.PushAll(children[idx+1:])
		node := children[idx]
		if node.Path == path {
			t.work = work.Push(node)
			return nil
		}
		if !node.HoldsChildren {
			return &FolderError{Kind: ErrFolderNotFound, Path: path, Err: errNoSuchFolder}
		}
		parent = node
	}
}

// Remaining returns the folders not yet visited.
func (t *Traverser) Remaining() Worklist {
	return t.work
}

// Close closes the open folder, if any.
func (t *Traverser) Close() {
	t.closeOpen()
}

func (t *Traverser) closeOpen() {
	if t.open == nil {
		return
	}
	if err := t.session.CloseFolder(); err != nil {
		t.log.Warn("Failed to close folder", "folder", t.open.Path, "error", err)
	}
	t.open = nil
}
