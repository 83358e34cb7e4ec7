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
	"bytes"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/driftlake/driftlake-go/internal"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
	"github.com/stretchr/testify/suite"
)

var (
	falseBool            = false
	snapshotID     int64 = 9182715666859759686
	addedRows      int64 = 114563
	testSchemaDoc        = json.RawMessage(`{"type":"struct","schema-id":0,"fields":[` +
		`{"id":1,"name":"VendorID","required":true,"type":"int"},` +
		`{"id":2,"name":"pickup_ts","required":true,"type":"long"},` +
		`{"id":3,"name":"fare_amount","required":false,"type":"double"}]}`)

	manifestFileRecordsV1 = []ManifestFile{
		NewManifestFile(1, "/warehouse/nyc/taxis/metadata/0125c686-8aa6-4502-bdcc-b6d17ca41a3b-m0.avro",
			7989, 1, snapshotID).
			AddedFiles(2).
			ExistingFiles(0).
			DeletedFiles(0).
			AddedRows(addedRows).
			ExistingRows(0).
			DeletedRows(0).
			Partitions([]FieldSummary{{
				ContainsNull: true, ContainsNaN: &falseBool,
				LowerBound: &[]byte{0x01, 0x00, 0x00, 0x00},
				UpperBound: &[]byte{0x02, 0x00, 0x00, 0x00},
			}}).Build(),
	}

	manifestFileRecordsV2 = []ManifestFile{
		NewManifestFile(2, "/warehouse/nyc/taxis/metadata/0125c686-8aa6-4502-bdcc-b6d17ca41a3b-m0.avro",
			7989, 1, snapshotID).
			Content(ManifestContentDeletes).
			SequenceNum(3, 3).
			AddedFiles(2).
			ExistingFiles(0).
			DeletedFiles(0).
			AddedRows(addedRows).
			ExistingRows(0).
			DeletedRows(0).
			Partitions([]FieldSummary{{
				ContainsNull: true,
				ContainsNaN:  &falseBool,
				LowerBound:   &[]byte{0x01, 0x00, 0x00, 0x00},
				UpperBound:   &[]byte{0x02, 0x00, 0x00, 0x00},
			}}).Build(),
	}

	entrySnapshotID int64 = 8744736658442914487
	intZero               = 0
	testPartSpec          = NewPartitionSpecID(1,
		PartitionField{FieldID: 1000, SourceID: 1, Name: "VendorID", Transform: "identity", Type: PartitionValueInt},
		PartitionField{FieldID: 1001, SourceID: 2, Name: "pickup_ts", Transform: "identity", Type: PartitionValueLong})

	manifestEntryV1Records = []*manifestEntry{
		{
			EntryStatus: EntryStatusADDED,
			Snapshot:    &entrySnapshotID,
			Data: &dataFile{
				Path:             "/warehouse/nyc/taxis/data/VendorID=null/00000-633-adaba6e8abd7-00001.parquet",
				Format:           ParquetFile,
				PartitionData:    map[string]any{"VendorID": int(1), "pickup_ts": int64(1925000000)},
				RecordCount:      19513,
				FileSize:         388872,
				BlockSizeInBytes: 67108864,
				ColSizes: &[]colMap[int, int64]{
					{Key: 1, Value: 53},
					{Key: 2, Value: 98153},
					{Key: 3, Value: 98693},
				},
				ValCounts: &[]colMap[int, int64]{
					{Key: 1, Value: 19513},
					{Key: 2, Value: 19513},
					{Key: 3, Value: 19513},
				},
				NullCounts: &[]colMap[int, int64]{
					{Key: 1, Value: 19513},
					{Key: 2, Value: 0},
					{Key: 3, Value: 0},
				},
				NaNCounts: &[]colMap[int, int64]{
					{Key: 3, Value: 0},
				},
				DistinctCounts: &[]colMap[int, int64]{
					{Key: 1, Value: 4},
					{Key: 3, Value: 311},
				},
				LowerBounds: &[]colMap[int, []byte]{
					{Key: 2, Value: []byte("2020-04-01 00:00")},
					{Key: 3, Value: []byte{0, 0, 0, 0, 0, 0, 0xe0, 0xbf}},
				},
				UpperBounds: &[]colMap[int, []byte]{
					{Key: 2, Value: []byte("2020-04-30 23:5:")},
					{Key: 3, Value: []byte{0, 0, 0, 0, 0, 0, 0xe0, '?'}},
				},
				Splits:    &[]int64{0, 400, 900},
				SortOrder: &intZero,
			},
		},
		{
			EntryStatus: EntryStatusADDED,
			Snapshot:    &entrySnapshotID,
			Data: &dataFile{
				Path:             "/warehouse/nyc/taxis/data/VendorID=1/00000-633-adaba6e8abd7-00002.parquet",
				Format:           ParquetFile,
				PartitionData:    map[string]any{"VendorID": int(1), "pickup_ts": int64(1925000000)},
				RecordCount:      95050,
				FileSize:         1265950,
				BlockSizeInBytes: 67108864,
				ColSizes: &[]colMap[int, int64]{
					{Key: 1, Value: 318},
					{Key: 2, Value: 329806},
					{Key: 3, Value: 331632},
				},
				ValCounts: &[]colMap[int, int64]{
					{Key: 1, Value: 95050},
					{Key: 2, Value: 95050},
					{Key: 3, Value: 95050},
				},
				NullCounts: &[]colMap[int, int64]{
					{Key: 1, Value: 0},
					{Key: 2, Value: 0},
					{Key: 3, Value: 0},
				},
				Splits:    &[]int64{4},
				SortOrder: &intZero,
			},
		},
	}

	dataRecord0 = manifestEntryV1Records[0].Data.(*dataFile)
	dataRecord1 = manifestEntryV1Records[1].Data.(*dataFile)

	manifestEntryV2Records = []*manifestEntry{
		{
			EntryStatus: EntryStatusADDED,
			Snapshot:    &entrySnapshotID,
			Data: &dataFile{
				Path:           dataRecord0.Path,
				Format:         dataRecord0.Format,
				PartitionData:  dataRecord0.PartitionData,
				RecordCount:    dataRecord0.RecordCount,
				FileSize:       dataRecord0.FileSize,
				ColSizes:       dataRecord0.ColSizes,
				ValCounts:      dataRecord0.ValCounts,
				NullCounts:     dataRecord0.NullCounts,
				NaNCounts:      dataRecord0.NaNCounts,
				DistinctCounts: dataRecord0.DistinctCounts,
				LowerBounds:    dataRecord0.LowerBounds,
				UpperBounds:    dataRecord0.UpperBounds,
				Splits:         dataRecord0.Splits,
				SortOrder:      dataRecord0.SortOrder,
			},
		},
		{
			EntryStatus: EntryStatusADDED,
			Snapshot:    &entrySnapshotID,
			Data: &dataFile{
				Path:          dataRecord1.Path,
				Format:        dataRecord1.Format,
				PartitionData: dataRecord1.PartitionData,
				RecordCount:   dataRecord1.RecordCount,
				FileSize:      dataRecord1.FileSize,
				ColSizes:      dataRecord1.ColSizes,
				ValCounts:     dataRecord1.ValCounts,
				NullCounts:    dataRecord1.NullCounts,
				Splits:        dataRecord1.Splits,
				SortOrder:     dataRecord1.SortOrder,
			},
		},
	}
)

type ManifestTestSuite struct {
	suite.Suite

	v1ManifestList    bytes.Buffer
	v1ManifestEntries bytes.Buffer

	v2ManifestList    bytes.Buffer
	v2ManifestEntries bytes.Buffer
}

func (m *ManifestTestSuite) writeManifestList() {
	m.Require().NoError(WriteManifestList(1, &m.v1ManifestList, snapshotID, nil, nil, manifestFileRecordsV1))
	unassignedSequenceNum := int64(-1)
	m.Require().NoError(WriteManifestList(2, &m.v2ManifestList, snapshotID, nil, &unassignedSequenceNum, manifestFileRecordsV2))
}

func (m *ManifestTestSuite) writeManifestEntries() {
	manifestEntryV1Recs := make([]ManifestEntry, len(manifestEntryV1Records))
	for i, rec := range manifestEntryV1Records {
		manifestEntryV1Recs[i] = rec
	}

	manifestEntryV2Recs := make([]ManifestEntry, len(manifestEntryV2Records))
	for i, rec := range manifestEntryV2Records {
		manifestEntryV2Recs[i] = rec
	}

	mf, err := WriteManifest("/warehouse/nyc/taxis/metadata/0125c686-8aa6-4502-bdcc-b6d17ca41a3b-m0.avro",
		&m.v1ManifestEntries, 1, testPartSpec, testSchemaDoc, 0, entrySnapshotID, manifestEntryV1Recs)
	m.Require().NoError(err)

	m.EqualValues(m.v1ManifestEntries.Len(), mf.Length())

	mf, err = WriteManifest("/warehouse/nyc/taxis/metadata/0125c686-8aa6-4502-bdcc-b6d17ca41a3b-m0.avro",
		&m.v2ManifestEntries, 2, testPartSpec, testSchemaDoc, 0, entrySnapshotID, manifestEntryV2Recs)
	m.Require().NoError(err)

	m.EqualValues(m.v2ManifestEntries.Len(), mf.Length())
}

func (m *ManifestTestSuite) SetupSuite() {
	m.writeManifestList()
	m.writeManifestEntries()
}

func (m *ManifestTestSuite) TestReadManifestListV1() {
	list, err := ReadManifestList(bytes.NewReader(m.v1ManifestList.Bytes()))
	m.Require().NoError(err)

	m.Len(list, 1)
	m.Equal(1, list[0].Version())
	m.EqualValues(7989, list[0].Length())
	m.Equal(ManifestContentData, list[0].ManifestContent())
	m.Zero(list[0].SequenceNum())
	m.Zero(list[0].MinSequenceNum())
	m.Equal(snapshotID, list[0].SnapshotID())
	m.EqualValues(2, list[0].AddedDataFiles())
	m.True(list[0].HasAddedFiles())
	m.Zero(list[0].ExistingDataFiles())
	m.False(list[0].HasExistingFiles())
	m.Zero(list[0].DeletedDataFiles())
	m.Equal(addedRows, list[0].AddedRows())
	m.Zero(list[0].ExistingRows())
	m.Zero(list[0].DeletedRows())
	m.NotNil(list[0].KeyMetadata())
	m.Empty(list[0].KeyMetadata())
	m.EqualValues(1, list[0].PartitionSpecID())

	part := list[0].Partitions()[0]
	m.True(part.ContainsNull)
	m.False(*part.ContainsNaN)
	m.Equal([]byte{0x01, 0x00, 0x00, 0x00}, part.LowerBoundBytes())
	m.Equal([]byte{0x02, 0x00, 0x00, 0x00}, part.UpperBoundBytes())
}

func (m *ManifestTestSuite) TestReadManifestListV2() {
	list, err := ReadManifestList(bytes.NewReader(m.v2ManifestList.Bytes()))
	m.Require().NoError(err)

	m.Len(list, 1)
	m.Equal("/warehouse/nyc/taxis/metadata/0125c686-8aa6-4502-bdcc-b6d17ca41a3b-m0.avro", list[0].FilePath())
	m.Equal(2, list[0].Version())
	m.EqualValues(7989, list[0].Length())
	m.Equal(ManifestContentDeletes, list[0].ManifestContent())
	m.EqualValues(3, list[0].SequenceNum())
	m.EqualValues(3, list[0].MinSequenceNum())
	m.Equal(snapshotID, list[0].SnapshotID())
	m.EqualValues(2, list[0].AddedDataFiles())
	m.True(list[0].HasAddedFiles())
	m.Zero(list[0].ExistingDataFiles())
	m.False(list[0].HasExistingFiles())
	m.Zero(list[0].DeletedDataFiles())
	m.Equal(addedRows, list[0].AddedRows())
	m.Zero(list[0].ExistingRows())
	m.Zero(list[0].DeletedRows())
	m.NotNil(list[0].KeyMetadata())
	m.Empty(list[0].KeyMetadata())
	m.EqualValues(1, list[0].PartitionSpecID())
}

func (m *ManifestTestSuite) TestManifestListEntries() {
	entries, err := ReadManifestListEntries(bytes.NewReader(m.v2ManifestList.Bytes()))
	m.Require().NoError(err)

	m.Len(entries, 1)
	m.Equal(ManifestListEntry{
		ManifestPath:    "/warehouse/nyc/taxis/metadata/0125c686-8aa6-4502-bdcc-b6d17ca41a3b-m0.avro",
		ManifestLength:  7989,
		PartitionSpecID: 1,
		SequenceNumber:  3,
		Content:         ManifestContentDeletes,
	}, entries[0])

	v1Entries, err := ReadManifestListEntries(bytes.NewReader(m.v1ManifestList.Bytes()))
	m.Require().NoError(err)
	m.Len(v1Entries, 1)
	m.Zero(v1Entries[0].SequenceNumber)
	m.Equal(ManifestContentData, v1Entries[0].Content)
}

func (m *ManifestTestSuite) TestManifestListEntryExactValues() {
	var buf bytes.Buffer
	seq := int64(1)
	file := NewManifestFile(2, "m1.avro", 1024, 0, snapshotID).
		SequenceNum(1, 1).
		AddedFiles(1).
		AddedRows(1).
		Build()
	m.Require().NoError(WriteManifestList(2, &buf, snapshotID, nil, &seq, []ManifestFile{file}))

	entries, err := ReadManifestListEntries(&buf)
	m.Require().NoError(err)
	m.Require().Len(entries, 1)
	m.Equal(ManifestListEntry{
		ManifestPath:    "m1.avro",
		ManifestLength:  1024,
		PartitionSpecID: 0,
		SequenceNumber:  1,
		Content:         ManifestContentData,
	}, entries[0])
}

func (m *ManifestTestSuite) TestManifestEntriesV1() {
	var mockfs internal.MockFS
	manifest := manifestFile{
		version: 1,
		SpecID:  1,
		Path:    manifestFileRecordsV1[0].FilePath(),
	}

	mockfs.Test(m.T())
	mockfs.On("Open", manifest.FilePath()).Return(&internal.MockFile{
		Contents: bytes.NewReader(m.v1ManifestEntries.Bytes()),
	}, nil)
	defer mockfs.AssertExpectations(m.T())

	entries, err := manifest.FetchEntries(&mockfs, false)
	m.Require().NoError(err)
	m.Len(entries, 2)

	entry1 := entries[0]

	m.Equal(EntryStatusADDED, entry1.Status())
	m.Require().NotNil(entry1.SnapshotID())
	m.Equal(entrySnapshotID, *entry1.SnapshotID())
	// v1 predates sequence numbers, every entry resolves to 0
	m.Require().NotNil(entry1.SequenceNum())
	m.Zero(*entry1.SequenceNum())
	m.Require().NotNil(entry1.FileSequenceNum())
	m.Zero(*entry1.FileSequenceNum())

	datafile := entry1.DataFile()
	m.Equal(EntryContentData, datafile.ContentType())
	m.Equal(dataRecord0.Path, datafile.FilePath())
	m.Equal(ParquetFile, datafile.FileFormat())
	m.EqualValues(19513, datafile.Count())
	m.EqualValues(388872, datafile.FileSizeBytes())
	m.EqualValues(1, datafile.SpecID())
	m.Equal(map[int]int64{1: 53, 2: 98153, 3: 98693}, datafile.ColumnSizes())
	m.Equal(map[int]int64{1: 19513, 2: 19513, 3: 19513}, datafile.ValueCounts())
	m.Equal(map[int]int64{1: 19513, 2: 0, 3: 0}, datafile.NullValueCounts())
	m.Equal(map[int]int64{3: 0}, datafile.NaNValueCounts())
	m.Equal(map[int]int64{1: 4, 3: 311}, datafile.DistinctValueCounts())
	m.Equal(map[int][]byte{
		2: []byte("2020-04-01 00:00"),
		3: {0, 0, 0, 0, 0, 0, 0xe0, 0xbf},
	}, datafile.LowerBoundValues())
	m.Equal(map[int][]byte{
		2: []byte("2020-04-30 23:5:"),
		3: {0, 0, 0, 0, 0, 0, 0xe0, '?'},
	}, datafile.UpperBoundValues())

	m.Empty(datafile.KeyMetadata())
	m.Equal([]int64{0, 400, 900}, datafile.SplitOffsets())
	m.Empty(datafile.EqualityFieldIDs())
	m.Zero(*datafile.SortOrderID())

	part := datafile.Partition()
	m.Len(part, 2)
	m.EqualValues(1, part[1000])
	m.EqualValues(1925000000, part[1001])
}

func (m *ManifestTestSuite) TestManifestEntriesV2() {
	manifest := manifestFile{
		version:         2,
		SpecID:          1,
		SeqNumber:       3,
		MinSeqNumber:    3,
		AddedSnapshotID: snapshotID,
		Path:            manifestFileRecordsV2[0].FilePath(),
	}

	entries, err := ReadManifest(&manifest, bytes.NewReader(m.v2ManifestEntries.Bytes()), false)
	m.Require().NoError(err)
	m.Len(entries, 2)

	entry1 := entries[0]
	m.Equal(EntryStatusADDED, entry1.Status())
	m.Require().NotNil(entry1.SnapshotID())
	m.Equal(entrySnapshotID, *entry1.SnapshotID())
	// added entries inherit the manifest's sequence number
	m.Require().NotNil(entry1.SequenceNum())
	m.EqualValues(3, *entry1.SequenceNum())
	m.Require().NotNil(entry1.FileSequenceNum())
	m.EqualValues(3, *entry1.FileSequenceNum())

	m.EqualValues(1, entry1.DataFile().SpecID())
	m.Equal(map[int]int64{1: 4, 3: 311}, entry1.DataFile().DistinctValueCounts())
}

func (m *ManifestTestSuite) TestManifestReaderMetadata() {
	manifest := manifestFile{
		version: 2,
		SpecID:  1,
		Path:    manifestFileRecordsV2[0].FilePath(),
	}

	rdr, err := NewManifestReader(&manifest, bytes.NewReader(m.v2ManifestEntries.Bytes()))
	m.Require().NoError(err)

	m.Equal(2, rdr.Version())
	m.Equal(ManifestContentData, rdr.ManifestContent())

	id, err := rdr.SchemaID()
	m.Require().NoError(err)
	m.Zero(id)

	doc, err := rdr.Schema()
	m.Require().NoError(err)
	m.JSONEq(string(testSchemaDoc), string(doc))

	specID, err := rdr.PartitionSpecID()
	m.Require().NoError(err)
	m.Equal(1, specID)

	spec, err := rdr.PartitionSpec()
	m.Require().NoError(err)
	m.True(testPartSpec.Equals(*spec))
}

func (m *ManifestTestSuite) TestManifestReaderMismatchedVersion() {
	manifest := manifestFile{version: 1, Path: "foo.avro"}

	_, err := NewManifestReader(&manifest, bytes.NewReader(m.v2ManifestEntries.Bytes()))
	m.ErrorIs(err, ErrSchemaMismatch)
	m.ErrorContains(err, "format-version")
}

func (m *ManifestTestSuite) TestNullStatsDecodeToEmpty() {
	bldr, err := NewDataFileBuilder(NewPartitionSpecID(1), EntryContentData,
		"/warehouse/nyc/taxis/data/00000-adaba6e8abd7-00003.parquet",
		ParquetFile, nil, 100, 2048)
	m.Require().NoError(err)
	built, err := bldr.Build()
	m.Require().NoError(err)

	var buf bytes.Buffer
	entry := NewManifestEntry(EntryStatusADDED, nil, nil, nil, built)

	_, err = WriteManifest("m1.avro", &buf, 2, NewPartitionSpecID(1), testSchemaDoc, 0,
		entrySnapshotID, []ManifestEntry{entry})
	m.Require().NoError(err)

	manifest := manifestFile{version: 2, SpecID: 1, SeqNumber: 7, AddedSnapshotID: entrySnapshotID, Path: "m1.avro"}
	rdr, err := NewManifestReader(&manifest, bytes.NewReader(buf.Bytes()))
	m.Require().NoError(err)

	got, err := rdr.ReadEntry()
	m.Require().NoError(err)

	// before inheritance the stored nulls are preserved
	m.Nil(got.SequenceNum())
	m.Nil(got.FileSequenceNum())

	df := got.DataFile()
	m.NotNil(df.ColumnSizes())
	m.Empty(df.ColumnSizes())
	m.NotNil(df.ValueCounts())
	m.Empty(df.ValueCounts())
	m.NotNil(df.NullValueCounts())
	m.Empty(df.NullValueCounts())
	m.NotNil(df.NaNValueCounts())
	m.Empty(df.NaNValueCounts())
	m.NotNil(df.DistinctValueCounts())
	m.Empty(df.DistinctValueCounts())
	m.NotNil(df.LowerBoundValues())
	m.Empty(df.LowerBoundValues())
	m.NotNil(df.UpperBoundValues())
	m.Empty(df.UpperBoundValues())
	m.NotNil(df.SplitOffsets())
	m.Empty(df.SplitOffsets())
	m.NotNil(df.EqualityFieldIDs())
	m.Empty(df.EqualityFieldIDs())
	m.NotNil(df.KeyMetadata())
	m.Empty(df.KeyMetadata())
	m.Nil(df.SortOrderID())
	m.EqualValues(100, df.Count())
	m.EqualValues(2048, df.FileSizeBytes())

	// inheritance resolves the nulls from the manifest context
	got.Inherit(&manifest)
	m.Require().NotNil(got.SnapshotID())
	m.Equal(entrySnapshotID, *got.SnapshotID())
	m.Require().NotNil(got.SequenceNum())
	m.EqualValues(7, *got.SequenceNum())
}

func (m *ManifestTestSuite) TestExistingEntryDoesNotInheritSeqNum() {
	manifest := manifestFile{version: 2, SpecID: 1, SeqNumber: 9, AddedSnapshotID: snapshotID}

	entry := &manifestEntry{EntryStatus: EntryStatusEXISTING, Data: &dataFile{}}
	entry.Inherit(&manifest)

	m.Require().NotNil(entry.SnapshotID())
	m.Equal(snapshotID, *entry.SnapshotID())
	m.Nil(entry.SequenceNum())
	m.Nil(entry.FileSequenceNum())
}

func (m *ManifestTestSuite) TestSparseMapOrderRoundTrip() {
	// stored pair order is preserved exactly, duplicate keys included;
	// the map view keeps the last occurrence
	pairs := []colMap[int, int64]{
		{Key: 7, Value: 70},
		{Key: 2, Value: 20},
		{Key: 7, Value: 71},
		{Key: 1, Value: 10},
	}

	var buf bytes.Buffer
	entry := &manifestEntry{
		EntryStatus: EntryStatusADDED,
		Snapshot:    &entrySnapshotID,
		Data: &dataFile{
			Path:          "/warehouse/nyc/taxis/data/00000-adaba6e8abd7-00004.parquet",
			Format:        ParquetFile,
			PartitionData: map[string]any{},
			RecordCount:   10,
			FileSize:      100,
			ColSizes:      &pairs,
		},
	}

	_, err := WriteManifest("m2.avro", &buf, 2, NewPartitionSpecID(1), testSchemaDoc, 0,
		entrySnapshotID, []ManifestEntry{entry})
	m.Require().NoError(err)

	manifest := manifestFile{version: 2, SpecID: 1, SeqNumber: 1, AddedSnapshotID: entrySnapshotID}
	entries, err := ReadManifest(&manifest, bytes.NewReader(buf.Bytes()), false)
	m.Require().NoError(err)
	m.Require().Len(entries, 1)

	df := entries[0].DataFile().(*dataFile)
	m.Require().NotNil(df.ColSizes)
	m.Equal(pairs, *df.ColSizes)
	m.Equal(map[int]int64{1: 10, 2: 20, 7: 71}, df.ColumnSizes())
}

func (m *ManifestTestSuite) writeRawEntries(meta map[string][]byte, entries ...any) *bytes.Buffer {
	partType, err := partitionRecordSchema(NewPartitionSpecID(1))
	m.Require().NoError(err)
	sc, err := internal.NewManifestEntrySchema(partType, 2)
	m.Require().NoError(err)

	var buf bytes.Buffer
	enc, err := ocf.NewEncoderWithSchema(sc, &buf,
		ocf.WithSchemaMarshaler(ocf.FullSchemaMarshaler),
		ocf.WithEncoderSchemaCache(&avro.SchemaCache{}),
		ocf.WithMetadata(meta))
	m.Require().NoError(err)

	for _, e := range entries {
		m.Require().NoError(enc.Encode(e))
	}
	m.Require().NoError(enc.Close())

	return &buf
}

func entryFileMeta() map[string][]byte {
	return map[string][]byte{
		"format-version":    []byte("2"),
		"content":           []byte("data"),
		"schema":            []byte(`{}`),
		"schema-id":         []byte("0"),
		"partition-spec":    []byte(`[]`),
		"partition-spec-id": []byte("1"),
	}
}

func (m *ManifestTestSuite) TestEnumDomainValidation() {
	tests := []struct {
		name    string
		mutate  func(*manifestEntry)
		errPath string
	}{
		{"status out of domain", func(e *manifestEntry) {
			e.EntryStatus = 3
		}, "status"},
		{"content out of domain", func(e *manifestEntry) {
			e.Data.(*dataFile).Content = 5
		}, "data_file.content"},
		{"unknown file format", func(e *manifestEntry) {
			e.Data.(*dataFile).Format = "CSV"
		}, "data_file.file_format"},
		{"eq deletes without equality ids", func(e *manifestEntry) {
			e.Data.(*dataFile).Content = EntryContentEqDeletes
		}, "data_file.equality_ids"},
	}

	for _, tt := range tests {
		m.Run(tt.name, func() {
			entry := &manifestEntry{
				EntryStatus: EntryStatusADDED,
				Snapshot:    &entrySnapshotID,
				Data: &dataFile{
					Path:          "/warehouse/nyc/taxis/data/bad.parquet",
					Format:        ParquetFile,
					PartitionData: map[string]any{},
					RecordCount:   1,
					FileSize:      1,
				},
			}
			tt.mutate(entry)
			buf := m.writeRawEntries(entryFileMeta(), entry)

			manifest := manifestFile{version: 2, SpecID: 1}
			rdr, err := NewManifestReader(&manifest, buf)
			m.Require().NoError(err)

			_, err = rdr.ReadEntry()
			m.ErrorIs(err, ErrSchemaMismatch)
			m.ErrorContains(err, tt.errPath)
		})
	}
}

func (m *ManifestTestSuite) TestEnumBoundaryValuesAccepted() {
	for _, status := range []ManifestEntryStatus{EntryStatusEXISTING, EntryStatusADDED, EntryStatusDELETED} {
		seq := int64(1)
		entry := &manifestEntry{
			EntryStatus: status,
			Snapshot:    &entrySnapshotID,
			SeqNum:      &seq,
			Data: &dataFile{
				Path:          "/warehouse/nyc/taxis/data/ok.parquet",
				Format:        ParquetFile,
				PartitionData: map[string]any{},
				RecordCount:   1,
				FileSize:      1,
			},
		}
		buf := m.writeRawEntries(entryFileMeta(), entry)

		manifest := manifestFile{version: 2, SpecID: 1}
		rdr, err := NewManifestReader(&manifest, buf)
		m.Require().NoError(err)

		got, err := rdr.ReadEntry()
		m.Require().NoError(err)
		m.Equal(status, got.Status())
	}
}

func (m *ManifestTestSuite) TestInvalidContentMetadata() {
	entry := &manifestEntry{
		EntryStatus: EntryStatusADDED,
		Snapshot:    &entrySnapshotID,
		Data: &dataFile{
			Path:          "/warehouse/nyc/taxis/data/ok.parquet",
			Format:        ParquetFile,
			PartitionData: map[string]any{},
			RecordCount:   1,
			FileSize:      1,
		},
	}

	meta := entryFileMeta()
	meta["content"] = []byte("bogus")
	buf := m.writeRawEntries(meta, entry)

	manifest := manifestFile{version: 2, SpecID: 1}
	_, err := NewManifestReader(&manifest, buf)
	m.ErrorIs(err, ErrSchemaMismatch)
	m.ErrorContains(err, "content")
}

func (m *ManifestTestSuite) TestManifestReaderMalformedEntrySchema() {
	// the writer schema comes from the file; an entry record missing
	// the data_file or partition fields must fail, not panic
	tests := []struct {
		name    string
		schema  string
		errPath string
	}{
		{"missing data_file", `{"type": "record", "name": "manifest_entry", "fields": [
			{"name": "status", "type": "int"}]}`, "data_file"},
		{"data_file not a record", `{"type": "record", "name": "manifest_entry", "fields": [
			{"name": "status", "type": "int"},
			{"name": "data_file", "type": "long"}]}`, "data_file"},
		{"missing partition", `{"type": "record", "name": "manifest_entry", "fields": [
			{"name": "status", "type": "int"},
			{"name": "data_file", "type": {"type": "record", "name": "r2", "fields": [
				{"name": "file_path", "type": "string"}]}}]}`, "data_file.partition"},
		{"partition not a record", `{"type": "record", "name": "manifest_entry", "fields": [
			{"name": "status", "type": "int"},
			{"name": "data_file", "type": {"type": "record", "name": "r2", "fields": [
				{"name": "file_path", "type": "string"},
				{"name": "partition", "type": "string"}]}}]}`, "data_file.partition"},
	}

	for _, tt := range tests {
		m.Run(tt.name, func() {
			var buf bytes.Buffer
			enc, err := ocf.NewEncoderWithSchema(avro.MustParse(tt.schema), &buf,
				ocf.WithSchemaMarshaler(ocf.FullSchemaMarshaler),
				ocf.WithEncoderSchemaCache(&avro.SchemaCache{}),
				ocf.WithMetadata(entryFileMeta()))
			m.Require().NoError(err)
			m.Require().NoError(enc.Close())

			manifest := manifestFile{version: 2, SpecID: 1}
			_, err = NewManifestReader(&manifest, &buf)
			m.ErrorIs(err, ErrSchemaMismatch)
			m.ErrorContains(err, tt.errPath)
		})
	}
}

func (m *ManifestTestSuite) TestReadManifestListNonRecordSchema() {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoderWithSchema(avro.MustParse(`"long"`), &buf,
		ocf.WithSchemaMarshaler(ocf.FullSchemaMarshaler),
		ocf.WithEncoderSchemaCache(&avro.SchemaCache{}),
		ocf.WithMetadata(map[string][]byte{"format-version": []byte("1")}))
	m.Require().NoError(err)
	m.Require().NoError(enc.Close())

	_, err = ReadManifestList(&buf)
	m.ErrorIs(err, ErrSchemaMismatch)
	m.ErrorContains(err, "manifest_file")
}

func (m *ManifestTestSuite) TestLowercaseFileFormatNormalized() {
	entry := &manifestEntry{
		EntryStatus: EntryStatusADDED,
		Snapshot:    &entrySnapshotID,
		Data: &dataFile{
			Path:          "/warehouse/nyc/taxis/data/ok.parquet",
			Format:        "parquet",
			PartitionData: map[string]any{},
			RecordCount:   1,
			FileSize:      1,
		},
	}
	buf := m.writeRawEntries(entryFileMeta(), entry)

	manifest := manifestFile{version: 2, SpecID: 1}
	rdr, err := NewManifestReader(&manifest, buf)
	m.Require().NoError(err)

	got, err := rdr.ReadEntry()
	m.Require().NoError(err)
	m.Equal(ParquetFile, got.DataFile().FileFormat())
}

func (m *ManifestTestSuite) TestReadManifestListTruncated() {
	full := m.v2ManifestList.Bytes()
	_, err := ReadManifestList(bytes.NewReader(full[:40]))
	m.ErrorIs(err, ErrContainerRead)
}

func (m *ManifestTestSuite) TestReadManifestListNotAvro() {
	_, err := ReadManifestList(bytes.NewReader([]byte("not an avro container at all")))
	m.ErrorIs(err, ErrContainerRead)
}

func (m *ManifestTestSuite) TestWriteManifestListVersionChecks() {
	var buf bytes.Buffer
	seq := int64(1)
	err := WriteManifestList(2, &buf, snapshotID, nil, &seq, manifestFileRecordsV1)
	m.ErrorIs(err, ErrInvalidArgument)

	err = WriteManifestList(1, &buf, snapshotID, nil, nil, manifestFileRecordsV2)
	m.ErrorIs(err, ErrInvalidArgument)

	err = WriteManifestList(2, &buf, snapshotID, nil, nil, manifestFileRecordsV2)
	m.ErrorIs(err, ErrInvalidArgument)

	err = WriteManifestList(3, &buf, snapshotID, nil, &seq, nil)
	m.ErrorIs(err, ErrInvalidArgument)
}

func (m *ManifestTestSuite) TestManifestListSequenceAssignment() {
	// a manifest written by the committing snapshot has no sequence
	// number yet; the list writer assigns the commit's number
	unassigned := NewManifestFile(2, "/warehouse/nyc/taxis/metadata/new-m0.avro", 1234, 1, snapshotID).
		AddedFiles(1).AddedRows(10).Build()
	m.EqualValues(-1, unassigned.SequenceNum())

	var buf bytes.Buffer
	commitSeq := int64(12)
	m.Require().NoError(WriteManifestList(2, &buf, snapshotID, nil, &commitSeq, []ManifestFile{unassigned}))

	list, err := ReadManifestList(&buf)
	m.Require().NoError(err)
	m.Require().Len(list, 1)
	m.EqualValues(12, list[0].SequenceNum())
	m.EqualValues(12, list[0].MinSequenceNum())
}

func (m *ManifestTestSuite) TestManifestListSequenceAssignmentWrongSnapshot() {
	unassigned := NewManifestFile(2, "/warehouse/nyc/taxis/metadata/new-m0.avro", 1234, 1, snapshotID+1).
		AddedFiles(1).AddedRows(10).Build()

	var buf bytes.Buffer
	commitSeq := int64(12)
	err := WriteManifestList(2, &buf, snapshotID, nil, &commitSeq, []ManifestFile{unassigned})
	m.ErrorContains(err, "unassigned sequence number")
}

func (m *ManifestTestSuite) TestManifestWriterCounters() {
	var buf bytes.Buffer
	w, err := NewManifestWriter(2, &buf, testPartSpec, testSchemaDoc, 0, snapshotID)
	m.Require().NoError(err)

	added := &manifestEntry{EntryStatus: EntryStatusADDED, Data: dataRecord0}
	m.Require().NoError(w.Add(added))

	seq, existingSnap := int64(2), snapshotID-1
	existing := &manifestEntry{
		EntryStatus: EntryStatusEXISTING, Snapshot: &existingSnap, SeqNum: &seq, Data: dataRecord1,
	}
	m.Require().NoError(w.Existing(existing))

	delSeq := int64(5)
	deleted := &manifestEntry{
		EntryStatus: EntryStatusDELETED, Snapshot: &existingSnap, SeqNum: &delSeq, Data: dataRecord1,
	}
	m.Require().NoError(w.Delete(deleted))

	mf, err := w.ToManifestFile("/warehouse/nyc/taxis/metadata/counters-m0.avro", int64(buf.Len()))
	m.Require().NoError(err)

	m.EqualValues(1, mf.AddedDataFiles())
	m.EqualValues(1, mf.ExistingDataFiles())
	m.EqualValues(1, mf.DeletedDataFiles())
	m.Equal(dataRecord0.RecordCount, mf.AddedRows())
	m.Equal(dataRecord1.RecordCount, mf.ExistingRows())
	m.Equal(dataRecord1.RecordCount, mf.DeletedRows())
	m.EqualValues(2, mf.MinSequenceNum())
	m.EqualValues(-1, mf.SequenceNum())
	m.Equal(snapshotID, mf.SnapshotID())
	m.Len(mf.Partitions(), testPartSpec.NumFields())
}

func (m *ManifestTestSuite) TestEmptyManifestWriter() {
	var buf bytes.Buffer
	w, err := NewManifestWriter(2, &buf, testPartSpec, testSchemaDoc, 0, snapshotID)
	m.Require().NoError(err)
	m.ErrorContains(w.Close(), "empty manifest file")
}

func (m *ManifestTestSuite) TestManifestWriterInvalidVersion() {
	var buf bytes.Buffer
	_, err := NewManifestWriter(3, &buf, testPartSpec, testSchemaDoc, 0, snapshotID)
	m.ErrorIs(err, ErrInvalidArgument)
}

func (m *ManifestTestSuite) TestDataFileBuilderValidation() {
	spec := NewPartitionSpecID(1)

	_, err := NewDataFileBuilder(spec, EntryContentData, "", ParquetFile, nil, 1, 1)
	m.ErrorIs(err, ErrInvalidArgument)

	_, err = NewDataFileBuilder(spec, EntryContentData, "/data/f.parquet", "CSV", nil, 1, 1)
	m.ErrorIs(err, ErrInvalidArgument)

	_, err = NewDataFileBuilder(spec, EntryContentData, "/data/f.parquet", ParquetFile, nil, -1, 1)
	m.ErrorIs(err, ErrInvalidArgument)

	_, err = NewDataFileBuilder(spec, EntryContentData, "/data/f.parquet", ParquetFile, nil, 1, -1)
	m.ErrorIs(err, ErrInvalidArgument)

	// equality ids exactly when content is equality deletes
	bldr, err := NewDataFileBuilder(spec, EntryContentEqDeletes, "/data/del.parquet", ParquetFile, nil, 1, 1)
	m.Require().NoError(err)
	_, err = bldr.Build()
	m.ErrorIs(err, ErrInvalidArgument)

	df, err := bldr.EqualityFieldIDs([]int{1, 2}).Build()
	m.Require().NoError(err)
	m.Equal([]int{1, 2}, df.EqualityFieldIDs())

	bldr, err = NewDataFileBuilder(spec, EntryContentData, "/data/f.parquet", ParquetFile, nil, 1, 1)
	m.Require().NoError(err)
	_, err = bldr.EqualityFieldIDs([]int{1}).Build()
	m.ErrorIs(err, ErrInvalidArgument)
}

func (m *ManifestTestSuite) TestReadManifestDiscardDeleted() {
	var buf bytes.Buffer
	seq := int64(1)
	entries := []ManifestEntry{
		&manifestEntry{EntryStatus: EntryStatusADDED, Snapshot: &entrySnapshotID, Data: dataRecord0},
		&manifestEntry{EntryStatus: EntryStatusDELETED, Snapshot: &entrySnapshotID, SeqNum: &seq, Data: dataRecord1},
	}

	_, err := WriteManifest("m3.avro", &buf, 2, testPartSpec, testSchemaDoc, 0, entrySnapshotID, entries)
	m.Require().NoError(err)

	manifest := manifestFile{version: 2, SpecID: 1, SeqNumber: 4, AddedSnapshotID: entrySnapshotID}
	kept, err := ReadManifest(&manifest, bytes.NewReader(buf.Bytes()), true)
	m.Require().NoError(err)
	m.Len(kept, 1)
	m.Equal(EntryStatusADDED, kept[0].Status())

	all, err := ReadManifest(&manifest, bytes.NewReader(buf.Bytes()), false)
	m.Require().NoError(err)
	m.Len(all, 2)
}

func (m *ManifestTestSuite) TestFetchEntriesClosesFile() {
	var mockfs internal.MockFS
	manifest := manifestFile{version: 1, Path: "closes.avro"}

	file := &internal.MockFile{Contents: bytes.NewReader(m.v1ManifestEntries.Bytes()), ErrOnClose: true}
	mockfs.Test(m.T())
	mockfs.On("Open", "closes.avro").Return(file, nil)
	defer mockfs.AssertExpectations(m.T())

	_, err := manifest.FetchEntries(&mockfs, false)
	m.ErrorContains(err, "error on close")
}

func TestManifests(t *testing.T) {
	suite.Run(t, new(ManifestTestSuite))
}

func TestManifestFileNameMetadata(t *testing.T) {
	// the suite covers list semantics; this sanity checks that a list
	// file's own metadata carries the version it claims
	var buf bytes.Buffer
	seq := int64(3)
	if err := WriteManifestList(2, &buf, snapshotID, nil, &seq, manifestFileRecordsV2); err != nil {
		t.Fatal(err)
	}

	dec, err := ocf.NewDecoder(bytes.NewReader(buf.Bytes()), ocf.WithDecoderSchemaCache(&avro.SchemaCache{}))
	if err != nil {
		t.Fatal(err)
	}

	if got := string(dec.Metadata()["format-version"]); got != strconv.Itoa(2) {
		t.Fatalf("expected format-version 2, got %q", got)
	}
	if got := string(dec.Metadata()["snapshot-id"]); got != strconv.FormatInt(snapshotID, 10) {
		t.Fatalf("unexpected snapshot-id %q", got)
	}
	if got := string(dec.Metadata()["sequence-number"]); got != "3" {
		t.Fatalf("unexpected sequence-number %q", got)
	}
	if got := string(dec.Metadata()["parent-snapshot-id"]); got != "null" {
		t.Fatalf("unexpected parent-snapshot-id %q", got)
	}
}
