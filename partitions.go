// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package driftlake

import (
	"fmt"
	"slices"

	"github.com/driftlake/driftlake-go/internal"
	"github.com/hamba/avro/v2"
)

const (
	PartitionDataIDStart   = 1000
	InitialPartitionSpecID = 0
)

// PartitionValueType is the primitive type of a partition field's value.
// The manifest layer carries it so the dynamic partition record schema
// can be generated without consulting the full table schema, which is
// managed outside of this module.
type PartitionValueType string

const (
	PartitionValueBool      PartitionValueType = "boolean"
	PartitionValueInt       PartitionValueType = "int"
	PartitionValueLong      PartitionValueType = "long"
	PartitionValueFloat     PartitionValueType = "float"
	PartitionValueDouble    PartitionValueType = "double"
	PartitionValueString    PartitionValueType = "string"
	PartitionValueBinary    PartitionValueType = "binary"
	PartitionValueDate      PartitionValueType = "date"
	PartitionValueTime      PartitionValueType = "time"
	PartitionValueTimestamp PartitionValueType = "timestamp"
)

func (t PartitionValueType) avroSchema() (avro.Schema, error) {
	switch t {
	case PartitionValueBool:
		return internal.BoolSchema, nil
	case PartitionValueInt:
		return internal.IntSchema, nil
	case PartitionValueLong:
		return internal.LongSchema, nil
	case PartitionValueFloat:
		return internal.FloatSchema, nil
	case PartitionValueDouble:
		return internal.DoubleSchema, nil
	case PartitionValueString:
		return internal.StringSchema, nil
	case PartitionValueBinary:
		return internal.BinarySchema, nil
	case PartitionValueDate:
		return internal.DateSchema, nil
	case PartitionValueTime:
		return internal.TimeSchema, nil
	case PartitionValueTimestamp:
		return internal.TimestampSchema, nil
	default:
		return nil, fmt.Errorf("%w: unknown partition value type: %s", ErrInvalidArgument, t)
	}
}

// PartitionField represents how one partition value is derived from the
// source column by transformation.
type PartitionField struct {
	// SourceID is the source column id in the table's schema
	SourceID int `json:"source-id"`
	// FieldID is the partition field id across all the table partition specs
	FieldID int `json:"field-id"`
	// Name is the name of the partition field itself
	Name string `json:"name"`
	// Transform is the name of the transform used to produce the partition value
	Transform string `json:"transform"`
	// Type is the primitive type of the produced partition value
	Type PartitionValueType `json:"type,omitempty"`
}

func (p *PartitionField) String() string {
	return fmt.Sprintf("%d: %s: %s(%d)", p.FieldID, p.Name, p.Transform, p.SourceID)
}

// PartitionSpec captures the transformation from table data to partition
// values. Position i in a manifest's FieldSummary list corresponds to
// position i of the spec's field list; maintaining that binding is the
// caller's responsibility.
type PartitionSpec struct {
	// any change to a PartitionSpec will produce a new spec id
	id     int
	fields []PartitionField
}

func NewPartitionSpec(fields ...PartitionField) PartitionSpec {
	return NewPartitionSpecID(InitialPartitionSpecID, fields...)
}

func NewPartitionSpecID(id int, fields ...PartitionField) PartitionSpec {
	return PartitionSpec{id: id, fields: fields}
}

func (ps *PartitionSpec) ID() int        { return ps.id }
func (ps *PartitionSpec) NumFields() int { return len(ps.fields) }
func (ps *PartitionSpec) Field(i int) PartitionField {
	return ps.fields[i]
}

func (ps *PartitionSpec) Fields() []PartitionField {
	return slices.Clone(ps.fields)
}

func (ps *PartitionSpec) IsUnpartitioned() bool {
	return len(ps.fields) == 0
}

// Equals returns true iff the field lists are the same AND the spec id
// is the same between this partition spec and the provided one.
func (ps PartitionSpec) Equals(other PartitionSpec) bool {
	return ps.id == other.id && slices.Equal(ps.fields, other.fields)
}

func (ps PartitionSpec) String() string {
	if len(ps.fields) == 0 {
		return fmt.Sprintf("[spec_id=%d: unpartitioned]", ps.id)
	}

	out := fmt.Sprintf("[spec_id=%d:", ps.id)
	for i := range ps.fields {
		out += " " + ps.fields[i].String()
	}

	return out + "]"
}

// partitionRecordSchema builds the avro record schema for the partition
// tuple of a data file written with this spec. Each field carries its
// partition field id as a schema property so readers can recover the
// field-position binding from the writer schema alone.
func partitionRecordSchema(spec PartitionSpec) (avro.Schema, error) {
	fields := make([]*avro.Field, 0, spec.NumFields())
	for _, pf := range spec.fields {
		typ, err := pf.Type.avroSchema()
		if err != nil {
			return nil, fmt.Errorf("partition field %s: %w", pf.Name, err)
		}

		field, err := avro.NewField(pf.Name, internal.NullableSchema(typ),
			internal.WithFieldID(pf.FieldID))
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}

	return avro.NewRecordSchema("r102", "", fields)
}
