package mapent

import (
	"testing"
)

func TestKindAction(t *testing.T) {
	tests := []struct {
		kind   Kind
		action Action
	}{
		{KindLayer, ActionRead},
		{KindList, ActionRead},
		{KindJSONList, ActionRead},
		{KindDetail, ActionRead},
		{KindDocument, ActionRead},
		{KindMapImage, ActionRead},
		{KindFormatList, ActionExport},
		{KindCreate, ActionAdd},
		{KindUpdate, ActionChange},
		{KindDelete, ActionDelete},
	}

	for _, test := range tests {
		if action := KindAction(test.kind); action != test.action {
			t.Errorf("%v != %v for kind %v", action, test.action, test.kind)
		}
	}
}

func TestKindActionUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic for unknown kind")
		}
	}()
	KindAction(Kind("bogus"))
}

func TestCodename(t *testing.T) {
	tests := []struct {
		action    Action
		modelname string
		codename  string
	}{
		{ActionRead, "road", "read_road"},
		{ActionAdd, "road", "add_road"},
		{ActionChange, "signpost", "change_signpost"},
		{ActionDelete, "signpost", "delete_signpost"},
		{ActionExport, "road", "export_road"},
	}

	for _, test := range tests {
		if cn := Codename(test.action, test.modelname); cn != test.codename {
			t.Errorf("%v != %v", cn, test.codename)
		}
	}
}

func TestPermissionCodenames(t *testing.T) {
	expected := []string{
		"add_road",
		"change_road",
		"delete_road",
		"export_road",
		"read_road",
	}
	actual := PermissionCodenames("road")
	if len(actual) != len(expected) {
		t.Fatalf("%v != %v", actual, expected)
	}
	for i := range actual {
		if actual[i] != expected[i] {
			t.Errorf("%v != %v", actual, expected)
		}
	}
}
