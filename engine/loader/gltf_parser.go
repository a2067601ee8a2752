package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.x")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
)

type gltfParserImpl struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

// gltfParser loads a glTF or GLB document with its buffers and reads typed accessor data.
type gltfParser interface {
	// Parse loads a .gltf or .glb file. GLB is detected from the extension or the magic number.
	//
	// Parameters:
	//   - path: path to the file; external buffers resolve relative to its directory
	//
	// Returns:
	//   - error: if reading or decoding fails
	Parse(path string) error

	// ParseReader parses a document from a stream. External buffer URIs resolve against the
	// working directory.
	ParseReader(r io.Reader, isGLB bool) error

	// Document returns the parsed document, or nil before a successful parse.
	Document() *gltfDocument

	// ReadVec2 reads a VEC2 FLOAT accessor.
	ReadVec2(accessorIndex int) ([]mgl32.Vec2, error)

	// ReadVec3 reads a VEC3 FLOAT accessor.
	ReadVec3(accessorIndex int) ([]mgl32.Vec3, error)

	// ReadIndices reads a SCALAR accessor of 8, 16 or 32 bit unsigned integers as uint32.
	//
	// Parameters:
	//   - accessorIndex: the index of the accessor
	//
	// Returns:
	//   - []uint32: the widened indices
	//   - error: if the accessor has another type or lies outside its buffer
	ReadIndices(accessorIndex int) ([]uint32, error)
}

var _ gltfParser = &gltfParserImpl{}

func newGLTFParser() gltfParser {
	return &gltfParserImpl{}
}

func (p *gltfParserImpl) Document() *gltfDocument {
	return p.document
}

func (p *gltfParserImpl) Parse(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".glb") || (len(data) >= 4 && binary.LittleEndian.Uint32(data) == gltfGLBMagic) {
		return p.parseGLB(data)
	}
	return p.parseJSON(data)
}

func (p *gltfParserImpl) ParseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if isGLB {
		return p.parseGLB(data)
	}
	return p.parseJSON(data)
}

func (p *gltfParserImpl) parseJSON(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if len(doc.ExtensionsRequired) > 0 {
		return fmt.Errorf("%w: required extensions %v", ErrUnsupportedFormat, doc.ExtensionsRequired)
	}
	if err := p.loadBuffers(&doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}
	p.document = &doc
	return nil
}

// parseGLB splits a GLB container into its JSON and BIN chunks.
func (p *gltfParserImpl) parseGLB(data []byte) error {
	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var chunk gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read chunk header: %w", err)
		}
		if int64(chunk.ChunkLength) > int64(r.Len()) {
			return fmt.Errorf("GLB chunk of %d bytes exceeds file: %w", chunk.ChunkLength, errBufferSizeMismatch)
		}
		body := make([]byte, chunk.ChunkLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("failed to read chunk data: %w", err)
		}
		switch chunk.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = body
		case gltfGLBChunkBIN:
			p.glbBinaryChunk = body
		}
	}
	if jsonData == nil {
		return errMissingJSONChunk
	}
	return p.parseJSON(jsonData)
}

func (p *gltfParserImpl) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && p.glbBinaryChunk != nil:
			buf.Data = p.glbBinaryChunk
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			data, err := p.loadBufferURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}
		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

func (p *gltfParserImpl) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		return decodeDataURI(uri)
	}
	data, err := os.ReadFile(filepath.Join(p.baseDir, uri))
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
	}
	return data, nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<data>.
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errInvalidBufferURI
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: unsupported data URI encoding %q", errInvalidBufferURI, header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// readElements returns each element of an accessor as a slice of its buffer, following the
// buffer view stride.
func (p *gltfParserImpl) readElements(accessorIndex int, accessorType string, componentTypes ...int) (*gltfAccessor, [][]byte, error) {
	if p.document == nil {
		return nil, nil, errors.New("no document loaded")
	}
	if accessorIndex < 0 || accessorIndex >= len(p.document.Accessors) {
		return nil, nil, fmt.Errorf("%w: accessor %d of %d", ErrAccessorOutOfRange, accessorIndex, len(p.document.Accessors))
	}
	acc := &p.document.Accessors[accessorIndex]
	if acc.Type != accessorType {
		return nil, nil, fmt.Errorf("accessor %d is %s, want %s", accessorIndex, acc.Type, accessorType)
	}
	validComponent := false
	for _, ct := range componentTypes {
		validComponent = validComponent || acc.ComponentType == ct
	}
	if !validComponent {
		return nil, nil, fmt.Errorf("accessor %d: unsupported component type %d", accessorIndex, acc.ComponentType)
	}
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("%w: sparse accessor %d", ErrUnsupportedFormat, accessorIndex)
	}
	if acc.BufferView == nil {
		// an accessor without a buffer view reads as zeros
		zero := make([]byte, gltfComponentTypeSize(acc.ComponentType)*gltfAccessorTypeComponentCount(acc.Type))
		out := make([][]byte, acc.Count)
		for i := range out {
			out[i] = zero
		}
		return acc, out, nil
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, nil, fmt.Errorf("%w: buffer view %d", ErrAccessorOutOfRange, *acc.BufferView)
	}
	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, nil, fmt.Errorf("%w: buffer %d", ErrAccessorOutOfRange, bv.Buffer)
	}
	data := p.document.Buffers[bv.Buffer].Data

	elementSize := gltfComponentTypeSize(acc.ComponentType) * gltfAccessorTypeComponentCount(acc.Type)
	stride := elementSize
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}
	if acc.Count < 0 {
		return nil, nil, fmt.Errorf("%w: accessor %d has negative count", ErrAccessorOutOfRange, accessorIndex)
	}
	viewEnd := bv.ByteOffset + bv.ByteLength
	if acc.Count > 0 {
		last := bv.ByteOffset + acc.ByteOffset + (acc.Count-1)*stride + elementSize
		if last > viewEnd || viewEnd > len(data) {
			return nil, nil, fmt.Errorf("%w: accessor %d reads to byte %d of a %d byte view", ErrAccessorOutOfRange, accessorIndex, last, bv.ByteLength)
		}
	}

	out := make([][]byte, acc.Count)
	base := bv.ByteOffset + acc.ByteOffset
	for i := range out {
		o := base + i*stride
		out[i] = data[o : o+elementSize]
	}
	return acc, out, nil
}

func readFloat(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func (p *gltfParserImpl) ReadVec2(accessorIndex int) ([]mgl32.Vec2, error) {
	_, elements, err := p.readElements(accessorIndex, gltfAccessorTypeVec2, gltfComponentTypeFloat)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec2, len(elements))
	for i, e := range elements {
		out[i] = mgl32.Vec2{readFloat(e, 0), readFloat(e, 1)}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadVec3(accessorIndex int) ([]mgl32.Vec3, error) {
	_, elements, err := p.readElements(accessorIndex, gltfAccessorTypeVec3, gltfComponentTypeFloat)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, len(elements))
	for i, e := range elements {
		out[i] = mgl32.Vec3{readFloat(e, 0), readFloat(e, 1), readFloat(e, 2)}
	}
	return out, nil
}

func (p *gltfParserImpl) ReadIndices(accessorIndex int) ([]uint32, error) {
	acc, elements, err := p.readElements(accessorIndex, gltfAccessorTypeScalar,
		gltfComponentTypeUnsignedByte, gltfComponentTypeUnsignedShort, gltfComponentTypeUnsignedInt)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(elements))
	for i, e := range elements {
		switch acc.ComponentType {
		case gltfComponentTypeUnsignedByte:
			out[i] = uint32(e[0])
		case gltfComponentTypeUnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(e))
		default:
			out[i] = binary.LittleEndian.Uint32(e)
		}
	}
	return out, nil
}

func gltfComponentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func gltfAccessorTypeComponentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
