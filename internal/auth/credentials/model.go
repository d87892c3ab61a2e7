package credentials

const (
	HashVersionArgon2id = "argon2id"
	HashVersionBcrypt   = "bcrypt"
)

// Hash is a stored password hash. For argon2id the salt is kept apart from
// the digest; bcrypt hashes embed their own salt and leave Salt empty.
type Hash struct {
	Value   string
	Salt    string
	Version string
}

// Params are the argon2id cost parameters.
type Params struct {
	Time        uint32
	MemoryKiB   uint32
	Parallelism uint8
}

var DefaultParams = Params{
	Time:        3,
	MemoryKiB:   64 * 1024,
	Parallelism: 2,
}
