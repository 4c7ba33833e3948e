package mysqlstore

import (
	"strings"
	"testing"
)

func TestSchema(t *testing.T) {
	schema, err := Schema("syncbox_operations")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(schema, "payload LONGBLOB") {
		t.Fatalf("expected LONGBLOB payload in schema")
	}
	if !strings.Contains(schema, "created_ts BIGINT GENERATED ALWAYS AS") {
		t.Fatalf("expected created_ts generated column in schema")
	}
}

func TestPartitionedSchema(t *testing.T) {
	parts := []Partition{{Name: "p1", LessThan: "10"}}
	schema, err := PartitionedSchema("syncbox_operations", parts)
	if err != nil {
		t.Fatalf("partitioned schema: %v", err)
	}
	if !strings.Contains(schema, "PARTITION BY RANGE") {
		t.Fatalf("expected partition clause")
	}
	if !strings.Contains(schema, "PARTITION p1 VALUES LESS THAN (10)") {
		t.Fatalf("expected partition definition, got: %s", schema)
	}
}

func TestPartitionedSchemaRequiresPartitions(t *testing.T) {
	if _, err := PartitionedSchema("syncbox_operations", nil); err != ErrPartitionsRequired {
		t.Fatalf("expected ErrPartitionsRequired, got %v", err)
	}
}

func TestPartitionedSchemaRejectsInvalidPartition(t *testing.T) {
	parts := []Partition{{Name: "", LessThan: "10"}}
	if _, err := PartitionedSchema("syncbox_operations", parts); err != ErrInvalidPartition {
		t.Fatalf("expected ErrInvalidPartition, got %v", err)
	}
}
