package thread

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustInsert(t *testing.T, tr *Tree, id, replyTo int64, author, text string) {
	t.Helper()
	_, err := tr.Insert(id, replyTo, author, text)
	require.NoError(t, err)
}

func TestInsertKeepsSiblingOrder(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 5, TopLevel, "a", "five")
	mustInsert(t, tr, 2, TopLevel, "a", "two")
	mustInsert(t, tr, 9, TopLevel, "a", "nine")
	mustInsert(t, tr, 7, TopLevel, "a", "seven")

	assert.Equal(t, []int64{2, 5, 7, 9}, tr.Roots())

	mustInsert(t, tr, 12, 5, "b", "reply")
	mustInsert(t, tr, 10, 5, "b", "reply")
	n, ok := tr.Find(5)
	require.True(t, ok)
	assert.Equal(t, []int64{10, 12}, n.Children())
}

func TestInsertUnknownParent(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "alice", "hi")

	_, err := tr.Insert(2, 42, "bob", "orphan")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownParent))
	assert.Equal(t, 1, tr.Len())
	assert.False(t, tr.Has(2))
}

func TestInsertDuplicateLeavesTreeUntouched(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "alice", "hi")
	n, _ := tr.Find(1)
	n.Read = true

	_, err := tr.Insert(1, TopLevel, "alice", "hi")
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, []int64{1}, tr.Roots())
	assert.True(t, n.Read, "duplicate insert must not reset client flags")
}

func TestInsertRejectsNonPositiveID(t *testing.T) {
	tr := New()
	_, err := tr.Insert(0, TopLevel, "a", "b")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestFindAcrossForest(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "a", "root")
	mustInsert(t, tr, 2, 1, "b", "child")
	mustInsert(t, tr, 3, 2, "c", "grandchild")
	mustInsert(t, tr, 4, TopLevel, "d", "other root")

	n, ok := tr.Find(3)
	require.True(t, ok)
	assert.Equal(t, "grandchild", n.Text)
	assert.Equal(t, int64(2), n.ReplyTo)

	_, ok = tr.Find(99)
	assert.False(t, ok)
}

func TestIsFullyRead(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "a", "root")
	mustInsert(t, tr, 2, 1, "b", "child")
	mustInsert(t, tr, 3, 2, "c", "grandchild")

	for _, id := range []int64{1, 2} {
		n, _ := tr.Find(id)
		n.Read = true
	}
	assert.False(t, tr.IsFullyRead(1), "unread grandchild keeps root unread")
	assert.False(t, tr.IsFullyRead(2))

	n, _ := tr.Find(3)
	n.Read = true
	assert.True(t, tr.IsFullyRead(1))
	assert.True(t, tr.IsFullyRead(404))
}

func TestWalkPreOrder(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "a", "1")
	mustInsert(t, tr, 2, 1, "a", "1.2")
	mustInsert(t, tr, 3, TopLevel, "a", "3")
	mustInsert(t, tr, 4, 2, "a", "1.2.4")
	mustInsert(t, tr, 5, 1, "a", "1.5")

	var ids []int64
	var depths []int
	tr.Walk(func(n *Node, depth int) bool {
		ids = append(ids, n.ID)
		depths = append(depths, depth)
		return true
	})

	assert.Equal(t, []int64{1, 2, 4, 5, 3}, ids)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, depths)
}

func TestWalkStopsEarly(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "a", "1")
	mustInsert(t, tr, 2, 1, "a", "2")
	mustInsert(t, tr, 3, TopLevel, "a", "3")

	visited := 0
	tr.Walk(func(n *Node, _ int) bool {
		visited++
		return n.ID != 2
	})
	assert.Equal(t, 2, visited)
}

func TestToggleCollapsed(t *testing.T) {
	tr := New()
	mustInsert(t, tr, 1, TopLevel, "a", "1")

	assert.True(t, tr.ToggleCollapsed(1))
	n, _ := tr.Find(1)
	assert.True(t, n.Collapsed)
	assert.True(t, tr.ToggleCollapsed(1))
	assert.False(t, n.Collapsed)
	assert.False(t, tr.ToggleCollapsed(7))
}

// Replaying Messages() into a fresh tree always resolves every parent, which
// is what lets the server replay its forest to a new client.
func TestReplayOrderResolvesParents(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tr := New()
		n := rapid.IntRange(1, 60).Draw(t, "n")
		for id := int64(1); id <= int64(n); id++ {
			parent := rapid.Int64Range(0, id-1).Draw(t, "parent")
			if _, err := tr.Insert(id, parent, "u", "m"); err != nil {
				t.Fatalf("insert %d under %d: %v", id, parent, err)
			}
		}

		replica := New()
		for _, m := range tr.Messages() {
			if _, err := replica.Insert(m.ID, m.ReplyTo, m.Author, m.Text); err != nil {
				t.Fatalf("replay %d: %v", m.ID, err)
			}
		}
		if replica.Len() != tr.Len() {
			t.Fatalf("replica has %d messages, want %d", replica.Len(), tr.Len())
		}

		replica.Walk(func(node *Node, _ int) bool {
			if !sort.SliceIsSorted(node.Children(), func(i, j int) bool {
				return node.Children()[i] < node.Children()[j]
			}) {
				t.Fatalf("children of %d not sorted: %v", node.ID, node.Children())
			}
			return true
		})
	})
}
