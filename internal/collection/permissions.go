package collection

import "net/http"

// Permission — метка требуемого права; внешний верификатор решает,
// разрешена ли она текущей сессии.
type Permission string

const (
	PermQueryMulti  Permission = "querying multiple objects"
	PermQueryByID   Permission = "querying an object by id"
	PermCreate      Permission = "creating an object"
	PermCreateMulti Permission = "creating multiple objects"
	PermUpdateByID  Permission = "updating an object by id"
	PermUpdateMulti Permission = "updating multiple objects"
	PermDeleteByID  Permission = "deleting an object by id"
	PermDeleteMulti Permission = "deleting multiple objects"
)

// DefaultPermissions — права, разрешённые любой сессии, пока внешняя
// политика не решила иначе.
var DefaultPermissions = map[Permission]bool{
	PermQueryMulti: true,
	PermQueryByID:  true,
	PermCreate:     true,
	PermDeleteByID: true,
	PermUpdateByID: true,
}

// RequiredPermissions выводит требуемый набор прав из метода, наличия id
// (query.id уже нормализован при входе) и формы тела.
func RequiredPermissions(ctx *Context) []Permission {
	hasID := idString(ctx.Query["id"]) != ""
	bodyIsSeq := ctx.bodySlice() != nil

	switch ctx.Method {
	case http.MethodGet:
		if hasID {
			return []Permission{PermQueryByID}
		}
		return []Permission{PermQueryMulti}
	case http.MethodPost:
		if bodyIsSeq {
			return []Permission{PermCreateMulti}
		}
		if hasID {
			return []Permission{PermUpdateByID, PermQueryByID}
		}
		return []Permission{PermCreate}
	case http.MethodPut:
		if hasID {
			return []Permission{PermUpdateByID, PermQueryByID}
		}
		return []Permission{PermQueryMulti, PermUpdateMulti}
	case http.MethodDelete:
		if hasID {
			return []Permission{PermDeleteByID}
		}
		return []Permission{PermDeleteMulti}
	}
	return nil
}
