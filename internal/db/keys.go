package db

import (
	"strconv"
	"strings"
)

// Key names a record by its ancestor path, e.g.
// User(7)/Relationship(9)/SentMessage(1700000000000).
//
// Storage uses composite primary keys; Key is how the rest of the code
// talks about a record (errors, logs) and which entity group it belongs to.
type Key struct {
	Kind   string
	ID     int64
	Parent *Key
}

// UserKey is the root key of a user's entity group.
func UserKey(uid uint64) Key { return Key{Kind: "User", ID: int64(uid)} }

// Child returns the key of a record filed under k.
func (k Key) Child(kind string, id int64) Key {
	parent := k
	return Key{Kind: kind, ID: id, Parent: &parent}
}

// Root returns the entity-group root.
func (k Key) Root() Key {
	for k.Parent != nil {
		k = *k.Parent
	}
	return k
}

// SameGroup reports whether both keys share a root.
func (k Key) SameGroup(o Key) bool {
	a, b := k.Root(), o.Root()
	return a.Kind == b.Kind && a.ID == b.ID
}

func (k Key) String() string {
	var parts []string
	for cur := &k; cur != nil; cur = cur.Parent {
		parts = append(parts, cur.Kind+"("+strconv.FormatInt(cur.ID, 10)+")")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
