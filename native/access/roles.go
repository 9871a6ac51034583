package access

// Role identifiers as bit flags. Bits are independent: holding Admin does not
// imply Attestor or any other role.
const (
	RoleAdmin    uint32 = 1 << 0
	RoleAttestor uint32 = 1 << 1
	RoleBusiness uint32 = 1 << 2
	RoleOperator uint32 = 1 << 3
)
