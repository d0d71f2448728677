package kernel

// Uid and Gid are POSIX-style numeric credentials.
type Uid uint32
type Gid uint32

// User and Group back the credential lookups the users/security syscall
// category (300-324) and /proc/<pid>/status need; the original Rust
// prototype kept this in its own users module, which spec.md's Data Model
// assumes exists (it lists uid/gid fields on Process) without specifying a
// lookup table.
type User struct {
	Uid  Uid
	Name string
	Gid  Gid
}

type Group struct {
	Gid  Gid
	Name string
}

// UserDb is a minimal in-memory credential database.
type UserDb struct {
	users  map[Uid]User
	groups map[Gid]Group
}

// NewUserDb creates a database pre-populated with root and a default
// unprivileged user, mirroring a minimal /etc/passwd.
func NewUserDb() *UserDb {
	db := &UserDb{
		users:  make(map[Uid]User),
		groups: make(map[Gid]Group),
	}
	db.AddUser(User{Uid: 0, Name: "root", Gid: 0})
	db.AddGroup(Group{Gid: 0, Name: "root"})
	db.AddUser(User{Uid: 1000, Name: "user", Gid: 1000})
	db.AddGroup(Group{Gid: 1000, Name: "user"})
	return db
}

func (db *UserDb) AddUser(u User)   { db.users[u.Uid] = u }
func (db *UserDb) AddGroup(g Group) { db.groups[g.Gid] = g }

func (db *UserDb) LookupUser(uid Uid) (User, bool) {
	u, ok := db.users[uid]
	return u, ok
}

func (db *UserDb) LookupGroup(gid Gid) (Group, bool) {
	g, ok := db.groups[gid]
	return g, ok
}
