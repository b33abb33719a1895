package actor

import (
	"fmt"
	"strings"

	gateway_errors "market-gateway/pkg/errors"
)

// NumberKind tells which coding scheme an actor number uses.
type NumberKind string

const (
	KindGLN NumberKind = "GLN"
	KindEIC NumberKind = "EIC"
)

// ActorNumber identifies a market participant, either a 13 digit GLN or a
// 16 character EIC.
type ActorNumber string

// ParseActorNumber validates s as a GLN or EIC number.
func ParseActorNumber(s string) (ActorNumber, error) {
	s = strings.TrimSpace(s)
	if kindOf(s) == "" {
		return "", fmt.Errorf("%w: actor number %q is neither a GLN nor an EIC", gateway_errors.ErrInvalidInput, s)
	}
	return ActorNumber(s), nil
}

// Kind returns the coding scheme of n, or "" when n is not valid.
func (n ActorNumber) Kind() NumberKind {
	return kindOf(string(n))
}

func (n ActorNumber) String() string {
	return string(n)
}

func kindOf(s string) NumberKind {
	switch len(s) {
	case 13:
		for _, r := range s {
			if r < '0' || r > '9' {
				return ""
			}
		}
		return KindGLN
	case 16:
		for _, r := range s {
			if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r == '-') {
				return ""
			}
		}
		return KindEIC
	}
	return ""
}

// ActorRole is the market role code of an actor.
type ActorRole string

const (
	RoleEnergySupplier                 ActorRole = "DDQ"
	RoleGridOperator                   ActorRole = "DDM"
	RoleMeteredDataResponsible         ActorRole = "MDR"
	RoleBalanceResponsibleParty        ActorRole = "DDK"
	RoleMeteringPointAdministrator     ActorRole = "DDZ"
	RoleMeteredDataAdministrator       ActorRole = "DGL"
	RoleImbalanceSettlementResponsible ActorRole = "DDX"
	RoleSystemOperator                 ActorRole = "EZ"
	RoleDelegated                      ActorRole = "DEL"
)

var roleNames = map[ActorRole]string{
	RoleEnergySupplier:                 "EnergySupplier",
	RoleGridOperator:                   "GridOperator",
	RoleMeteredDataResponsible:         "MeteredDataResponsible",
	RoleBalanceResponsibleParty:        "BalanceResponsibleParty",
	RoleMeteringPointAdministrator:     "MeteringPointAdministrator",
	RoleMeteredDataAdministrator:       "MeteredDataAdministrator",
	RoleImbalanceSettlementResponsible: "ImbalanceSettlementResponsible",
	RoleSystemOperator:                 "SystemOperator",
	RoleDelegated:                      "Delegated",
}

// ParseActorRole accepts a role code ("DDQ") or name ("EnergySupplier"),
// case-insensitively.
func ParseActorRole(s string) (ActorRole, error) {
	s = strings.TrimSpace(s)
	for code, name := range roleNames {
		if strings.EqualFold(s, string(code)) || strings.EqualFold(s, name) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: unknown actor role %q", gateway_errors.ErrInvalidInput, s)
}

// Name returns the descriptive name of the role.
func (r ActorRole) Name() string {
	return roleNames[r]
}

func (r ActorRole) String() string {
	return string(r)
}

// Receiver addresses exactly one actor message queue.
type Receiver struct {
	Number ActorNumber
	Role   ActorRole
}

// NewReceiver validates both parts of a receiver.
func NewReceiver(number, role string) (Receiver, error) {
	n, err := ParseActorNumber(number)
	if err != nil {
		return Receiver{}, err
	}
	r, err := ParseActorRole(role)
	if err != nil {
		return Receiver{}, err
	}
	return Receiver{Number: n, Role: r}, nil
}

// IsZero reports whether r has no number or no role.
func (r Receiver) IsZero() bool {
	return r.Number == "" || r.Role == ""
}

func (r Receiver) String() string {
	return fmt.Sprintf("%s/%s", r.Number, r.Role)
}
