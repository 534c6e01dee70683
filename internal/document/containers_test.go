package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackedList_MarksOwner(t *testing.T) {
	group := NewMeta("Group", "groups", &Field{Name: "_id"})
	owner, err := FromRaw(group, Raw{"_id": "g1"})
	require.NoError(t, err)

	l := NewTrackedList([]any{"a"}, owner, "members")
	require.False(t, owner.Changed("members"))

	l.Set(0, "b")
	require.True(t, owner.Changed("members"))
	require.Equal(t, "b", l.Get(0))

	l.Append("c")
	require.Equal(t, 2, l.Len())
}

func TestTrackedList_UnboundIsInert(t *testing.T) {
	l := NewTrackedList([]any{"a"}, nil, "")
	l.Set(0, "b")
	l.Append("c")
	require.Equal(t, []any{"b", "c"}, l.Items)
}

func TestTrackedMap_MarksOwner(t *testing.T) {
	group := NewMeta("Group", "groups", &Field{Name: "_id"})
	owner, err := FromRaw(group, Raw{"_id": "g1"})
	require.NoError(t, err)

	m := NewTrackedMap(map[string]any{"lead": "u1"}, owner, "roles")
	require.False(t, owner.Changed("roles"))

	m.Set("scribe", "u2")
	require.True(t, owner.Changed("roles"))
	require.Equal(t, 2, m.Len())

	m.Delete("lead")
	require.Nil(t, m.Get("lead"))
}

func TestContainers_MarshalJSON(t *testing.T) {
	buf, err := json.Marshal(Tuple{"a", 1})
	require.NoError(t, err)
	require.JSONEq(t, `["a",1]`, string(buf))

	buf, err = json.Marshal(NewTrackedList([]any{"a"}, nil, ""))
	require.NoError(t, err)
	require.JSONEq(t, `["a"]`, string(buf))

	buf, err = json.Marshal(NewTrackedMap(map[string]any{"k": "v"}, nil, ""))
	require.NoError(t, err)
	require.JSONEq(t, `{"k":"v"}`, string(buf))
}
