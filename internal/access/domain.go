package access

import "time"

// Module enumerates the grantable application modules.
type Module string

const (
	ModuleCatalog    Module = "catalog"
	ModuleStock      Module = "stock"
	ModuleSales      Module = "sales"
	ModuleCommission Module = "commission"
	ModulePersonnel  Module = "personnel"
	ModuleAccess     Module = "access"
)

// KnownModule reports whether the module name is one of the grantable modules.
func KnownModule(m Module) bool {
	switch m {
	case ModuleCatalog, ModuleStock, ModuleSales, ModuleCommission, ModulePersonnel, ModuleAccess:
		return true
	}
	return false
}

// Permission grants a user access to one module. Permissions are toggled,
// never versioned.
type Permission struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Module      Module    `json:"module"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
