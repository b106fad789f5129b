package model

import "testing"

func bookingDefinition() *Definition {
	return &Definition{
		Table:       "bookings",
		TablePrefix: "app_",
		Relations: map[string]Relation{
			"room":      {Type: BelongsTo, Table: "rooms"},
			"attendees": {Type: BelongsToMany, Table: "attendees", Pivot: "booking_attendees", PivotKey: "booking_id", PivotOtherKey: "attendee_id"},
			"notes":     {Type: HasMany, Table: "notes", Key: "booking_id"},
		},
	}
}

func TestDefinitionDefaults(t *testing.T) {
	d := bookingDefinition()
	if d.Key() != "id" {
		t.Errorf("key = %q, want id", d.Key())
	}
	if d.QualifiedTable() != "app_bookings" {
		t.Errorf("qualified table = %q", d.QualifiedTable())
	}
}

func TestMakeRelationBelongsToDefaults(t *testing.T) {
	d := bookingDefinition()
	rel, err := d.MakeRelation("room")
	if err != nil {
		t.Fatalf("make relation: %v", err)
	}
	if rel.Key != "room_id" {
		t.Errorf("key = %q, want room_id", rel.Key)
	}
	if rel.OtherKey != "id" {
		t.Errorf("other key = %q, want id", rel.OtherKey)
	}
	if rel.Table != "app_rooms" {
		t.Errorf("table = %q, want app_rooms", rel.Table)
	}
}

func TestMakeRelationPivotPrefixed(t *testing.T) {
	d := bookingDefinition()
	rel, err := d.MakeRelation("attendees")
	if err != nil {
		t.Fatalf("make relation: %v", err)
	}
	if rel.Pivot != "app_booking_attendees" {
		t.Errorf("pivot = %q", rel.Pivot)
	}
}

func TestMakeRelationMissing(t *testing.T) {
	d := bookingDefinition()
	if _, err := d.MakeRelation("owner"); err == nil {
		t.Fatal("expected error for undefined relation")
	}
	if d.HasRelation("owner") {
		t.Error("HasRelation(owner) should be false")
	}
	if d.RelationType("owner") != "" {
		t.Error("RelationType(owner) should be empty")
	}
}

func TestIsMultiRelation(t *testing.T) {
	for _, typ := range []string{HasMany, BelongsToMany, MorphToMany, MorphedByMany, MorphMany, AttachMany, HasManyThrough} {
		if !IsMultiRelation(typ) {
			t.Errorf("%s should be multi", typ)
		}
	}
	for _, typ := range []string{BelongsTo, HasOne, MorphTo, AttachOne} {
		if IsMultiRelation(typ) {
			t.Errorf("%s should not be multi", typ)
		}
	}
}

func TestMakeRelationHasManyDefaults(t *testing.T) {
	d := &Definition{
		Table: "rooms",
		Relations: map[string]Relation{
			"bookings": {Type: HasMany, Table: "bookings"},
			"latest":   {Type: HasOne, Table: "bookings", Key: "venue_id", OtherKey: "code"},
		},
	}
	rel, err := d.MakeRelation("bookings")
	if err != nil {
		t.Fatalf("make relation: %v", err)
	}
	if rel.Key != "room_id" || rel.OtherKey != "id" {
		t.Errorf("keys = %q/%q, want room_id/id", rel.Key, rel.OtherKey)
	}

	rel, err = d.MakeRelation("latest")
	if err != nil {
		t.Fatalf("make relation: %v", err)
	}
	if rel.Key != "venue_id" || rel.OtherKey != "code" {
		t.Errorf("explicit keys overwritten: %q/%q", rel.Key, rel.OtherKey)
	}
}

func TestForeignKey(t *testing.T) {
	tests := map[string]string{
		"rooms":      "room_id",
		"categories": "category_id",
		"classes":    "class_id",
		"boxes":      "box_id",
		"branches":   "branch_id",
		"staff":      "staff_id",
	}
	for table, want := range tests {
		if got := ForeignKey(table); got != want {
			t.Errorf("ForeignKey(%q) = %q, want %q", table, got, want)
		}
	}
}
