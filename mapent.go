// Package mapent builds map-centric record management services.
// Applications declare their entities in a mapping file and register
// them; mapent provides the list/detail/create/update/delete views,
// GeoJSON layers with cache validation, exports and document
// generation for each of them.
package mapent

// Kind identifies one of the generated views of a registered entity.
type Kind string

const (
	KindLayer      Kind = "layer"
	KindList       Kind = "list"
	KindJSONList   Kind = "jsonlist"
	KindFormatList Kind = "formatlist"
	KindMapImage   Kind = "mapimage"
	KindDocument   Kind = "document"
	KindCreate     Kind = "create"
	KindDetail     Kind = "detail"
	KindUpdate     Kind = "update"
	KindDelete     Kind = "delete"
)

// Action is the permission verb a view kind requires.
type Action string

const (
	ActionRead   Action = "read"
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

var kindActions = map[Kind]Action{
	KindLayer:      ActionRead,
	KindList:       ActionRead,
	KindJSONList:   ActionRead,
	KindFormatList: ActionExport,
	KindMapImage:   ActionRead,
	KindDocument:   ActionRead,
	KindCreate:     ActionAdd,
	KindDetail:     ActionRead,
	KindUpdate:     ActionChange,
	KindDelete:     ActionDelete,
}

// KindAction returns the permission verb required to dispatch a view
// of the given kind.
func KindAction(kind Kind) Action {
	action, ok := kindActions[kind]
	if !ok {
		panic("unknown view kind " + string(kind))
	}
	return action
}

// AllKinds returns every view kind in dispatch order.
func AllKinds() []Kind {
	return []Kind{
		KindLayer,
		KindList,
		KindJSONList,
		KindFormatList,
		KindMapImage,
		KindDocument,
		KindCreate,
		KindDetail,
		KindUpdate,
		KindDelete,
	}
}

// Codename builds the permission codename checked for a single action
// on a single model, e.g. "read_road".
func Codename(action Action, modelname string) string {
	return string(action) + "_" + modelname
}

// PermissionCodenames returns the codenames of all actions on a model,
// for seeding permission fixtures.
func PermissionCodenames(modelname string) []string {
	return []string{
		Codename(ActionAdd, modelname),
		Codename(ActionChange, modelname),
		Codename(ActionDelete, modelname),
		Codename(ActionExport, modelname),
		Codename(ActionRead, modelname),
	}
}
