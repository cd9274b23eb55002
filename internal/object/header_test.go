package object

import (
	"bytes"
	stdbin "encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

var le = stdbin.LittleEndian

func newTestWriter() (*binary.Writer, *binary.Buffer) {
	return binary.NewBuffered(binary.DefaultConfig())
}

func readerOver(data []byte) *binary.Reader {
	return binary.NewReader(bytes.NewReader(data), binary.DefaultConfig())
}

func testDatasetMessages() []message.Message {
	return []message.Message{
		message.NewDataspace([]uint64{4, 5}, nil),
		message.NewFixedPointDatatype(8, true, message.OrderLE),
		message.NewFillValue(message.AllocTimeLate),
		message.NewContiguousLayout(0x1000, 160),
		message.NewAttribute("units",
			message.NewStringDatatype(3, message.PadNullTerm, message.CharsetASCII),
			message.NewScalarDataspace(), []byte("mm\x00")),
	}
}

func checkDatasetMessages(t *testing.T, hdr *Header) {
	t.Helper()

	ds := hdr.Dataspace()
	if ds == nil || ds.Rank != 2 || len(ds.Dimensions) != 2 || ds.Dimensions[0] != 4 || ds.Dimensions[1] != 5 {
		t.Errorf("dataspace = %+v, want rank 2 dims [4 5]", ds)
	}
	dt := hdr.Datatype()
	if dt == nil || dt.Class != message.ClassFixedPoint || dt.Size != 8 {
		t.Errorf("datatype = %+v, want 8 byte fixed point", dt)
	}
	dl := hdr.DataLayout()
	if dl == nil || dl.Class != message.LayoutContiguous || dl.Address != 0x1000 {
		t.Errorf("layout = %+v, want contiguous at 0x1000", dl)
	}
	if hdr.GetMessage(message.TypeFillValue) == nil {
		t.Error("fill value message missing")
	}
	attrs := hdr.GetMessages(message.TypeAttribute)
	if len(attrs) != 1 || attrs[0].(*message.Attribute).Name != "units" {
		t.Errorf("attributes = %v, want one named units", attrs)
	}
	if len(hdr.Messages) != 5 {
		t.Errorf("message count = %d, want 5", len(hdr.Messages))
	}
}

func TestWriteReadV1(t *testing.T) {
	w, buf := newTestWriter()
	msgs := testDatasetMessages()

	n, err := WriteHeaderV1(w, msgs, 2)
	if err != nil {
		t.Fatalf("WriteHeaderV1: %v", err)
	}
	if want := int64(HeaderSizeV1(w, msgs)); n != want {
		t.Errorf("wrote %d bytes, HeaderSizeV1 says %d", n, want)
	}

	hdr, err := Read(readerOver(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hdr.Version != 1 {
		t.Errorf("version = %d, want 1", hdr.Version)
	}
	if hdr.RefCount != 2 {
		t.Errorf("refcount = %d, want 2", hdr.RefCount)
	}
	checkDatasetMessages(t, hdr)
}

func TestWriteReadV2(t *testing.T) {
	w, buf := newTestWriter()
	msgs := testDatasetMessages()

	n, err := WriteHeader(w, msgs)
	if err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if want := int64(HeaderSize(w, msgs)); n != want {
		t.Errorf("wrote %d bytes, HeaderSize says %d", n, want)
	}

	hdr, err := Read(readerOver(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hdr.Version != 2 {
		t.Errorf("version = %d, want 2", hdr.Version)
	}
	if hdr.RefCount != 1 {
		t.Errorf("refcount = %d, want 1", hdr.RefCount)
	}
	if hdr.Flags&flagTimes != 0 || hdr.AccessTime != 0 {
		t.Errorf("unexpected times in flags 0x%02x", hdr.Flags)
	}
	checkDatasetMessages(t, hdr)
}

func TestWriteHeaderMinChunk(t *testing.T) {
	w, buf := newTestWriter()
	msgs := NewGroupHeader(nil)

	n, err := WriteHeaderWithMinChunk(w, msgs, MinGroupChunkSize)
	if err != nil {
		t.Fatalf("WriteHeaderWithMinChunk: %v", err)
	}
	if want := int64(6 + 1 + MinGroupChunkSize + 4); n != want {
		t.Errorf("wrote %d bytes, want %d", n, want)
	}

	hdr, err := Read(readerOver(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(hdr.Messages) != 2 {
		t.Errorf("message count = %d, want link info and group info only", len(hdr.Messages))
	}
	if hdr.GetMessage(message.TypeLinkInfo) == nil || hdr.GetMessage(message.TypeGroupInfo) == nil {
		t.Error("link info or group info message missing")
	}
}

func TestGroupHeaderLinks(t *testing.T) {
	w, buf := newTestWriter()
	links := []*message.Link{
		message.NewHardLink("data", 0x2000),
		message.NewSoftLink("alias", "/data"),
	}
	if _, err := WriteHeaderWithMinChunk(w, NewGroupHeader(links), MinGroupChunkSize); err != nil {
		t.Fatalf("WriteHeaderWithMinChunk: %v", err)
	}

	hdr, err := Read(readerOver(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got := hdr.GetMessages(message.TypeLink)
	if len(got) != 2 {
		t.Fatalf("link count = %d, want 2", len(got))
	}
	hard := got[0].(*message.Link)
	if !hard.IsHard() || hard.Name != "data" || hard.ObjectAddress != 0x2000 {
		t.Errorf("hard link = %+v", hard)
	}
	soft := got[1].(*message.Link)
	if !soft.IsSoft() || soft.Name != "alias" || soft.SoftLinkValue != "/data" {
		t.Errorf("soft link = %+v", soft)
	}
}

func TestRefCountMessage(t *testing.T) {
	w, buf := newTestWriter()
	msgs := append(NewGroupHeader(nil), message.NewObjectRefCount(3))
	if _, err := WriteHeader(w, msgs); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	hdr, err := Read(readerOver(buf.Bytes()), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hdr.RefCount != 3 {
		t.Errorf("refcount = %d, want 3", hdr.RefCount)
	}
}

func TestChecksumMismatch(t *testing.T) {
	w, buf := newTestWriter()
	if _, err := WriteHeader(w, testDatasetMessages()); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	buf.Bytes()[10] ^= 0xFF
	_, err := Read(readerOver(buf.Bytes()), 0)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Read error = %v, want checksum mismatch", err)
	}
}

func TestContinuationV2(t *testing.T) {
	// A header whose only message is a continuation pointing at an
	// "OCHK" block holding a reference count message.
	buf := make([]byte, 96)
	copy(buf[0:], SignatureV2)
	buf[4] = 2
	buf[5] = 0 // 1-byte size field
	buf[6] = 20
	buf[7] = 0x10 // continuation
	le.PutUint16(buf[8:], 16)
	le.PutUint64(buf[11:], 64) // block offset
	le.PutUint64(buf[19:], 17) // block length
	le.PutUint32(buf[27:], binary.Lookup3(buf[:27]))

	copy(buf[64:], "OCHK")
	buf[68] = 0x16 // reference count
	le.PutUint16(buf[69:], 5)
	le.PutUint32(buf[73:], 7)
	le.PutUint32(buf[77:], binary.Lookup3(buf[64:77]))

	hdr, err := Read(readerOver(buf), 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if hdr.RefCount != 7 {
		t.Errorf("refcount = %d, want 7", hdr.RefCount)
	}

	// Any corruption inside the block must fail its checksum.
	buf[73] ^= 1
	if _, err := Read(readerOver(buf), 0); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Read error = %v, want checksum mismatch", err)
	}
}

func TestContinuationCycle(t *testing.T) {
	// A version 1 header whose continuation block is the message region
	// itself, so the chain never ends.
	buf := make([]byte, 48)
	buf[0] = 1
	le.PutUint16(buf[2:], 1)  // message count
	le.PutUint32(buf[4:], 1)  // refcount
	le.PutUint32(buf[8:], 24) // header size
	le.PutUint16(buf[16:], 0x10)
	le.PutUint16(buf[18:], 16)
	le.PutUint64(buf[24:], 16) // offset of the region being scanned
	le.PutUint64(buf[32:], 24)

	_, err := Read(readerOver(buf), 0)
	if !errors.Is(err, ErrInvalidHeader) || !strings.Contains(err.Error(), "continuation") {
		t.Fatalf("Read error = %v, want continuation depth error", err)
	}
}

func TestOversizeMessage(t *testing.T) {
	long := message.NewHardLink(strings.Repeat("n", 70000), 0x100)

	w, _ := newTestWriter()
	if _, err := WriteHeader(w, []message.Message{long}); err == nil {
		t.Error("WriteHeader accepted a message over 64 KiB")
	}
	if _, err := WriteHeaderV1(w, []message.Message{long}, 1); err == nil {
		t.Error("WriteHeaderV1 accepted a message over 64 KiB")
	}
}

func TestReadUnknownFormat(t *testing.T) {
	_, err := Read(readerOver([]byte{99, 0, 0, 0, 0, 0, 0, 0}), 0)
	if !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("Read error = %v, want invalid header", err)
	}

	if _, err := Read(readerOver(nil), 0); err == nil {
		t.Error("Read of empty file succeeded")
	}
}

func TestHeaderAccessors(t *testing.T) {
	h := &Header{Messages: []message.Message{
		&message.Dataspace{Rank: 3, Dimensions: []uint64{2, 3, 4}},
		&message.Datatype{Class: message.ClassFloatPoint, Size: 8},
		&message.DataLayout{Class: message.LayoutContiguous, Address: 1234},
		&message.FilterPipeline{Filters: []message.FilterInfo{{ID: 1}}},
	}}

	if ds := h.Dataspace(); ds == nil || ds.Rank != 3 {
		t.Errorf("Dataspace = %+v", ds)
	}
	if dt := h.Datatype(); dt == nil || dt.Class != message.ClassFloatPoint {
		t.Errorf("Datatype = %+v", dt)
	}
	if dl := h.DataLayout(); dl == nil || dl.Address != 1234 {
		t.Errorf("DataLayout = %+v", dl)
	}
	if fp := h.FilterPipeline(); fp == nil || len(fp.Filters) != 1 {
		t.Errorf("FilterPipeline = %+v", fp)
	}

	empty := &Header{}
	if empty.Dataspace() != nil || empty.Datatype() != nil || empty.DataLayout() != nil || empty.FilterPipeline() != nil {
		t.Error("accessors on an empty header should return nil")
	}
}

func TestGetMessages(t *testing.T) {
	h := &Header{Messages: []message.Message{
		&message.Dataspace{Rank: 1},
		&message.Attribute{Name: "a"},
		&message.Attribute{Name: "b"},
	}}

	if got := h.GetMessages(message.TypeAttribute); len(got) != 2 {
		t.Errorf("attribute count = %d, want 2", len(got))
	}
	if got := h.GetMessages(message.TypeLink); got != nil {
		t.Errorf("GetMessages for absent type = %v, want nil", got)
	}
	if h.GetMessage(message.TypeFilterPipeline) != nil {
		t.Error("GetMessage for absent type should return nil")
	}
}
