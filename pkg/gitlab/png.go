package gitlab

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Diagram files exported as PNG carry the model XML in a tEXt chunk with
// this keyword, URI-encoded the way the editor wrote it.
const diagramTextKey = "mxfile"

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// ExtractDiagram scans the tEXt chunks of a PNG image for an embedded
// diagram model. It returns the empty string when the image carries none;
// an error means the data is not a well-formed PNG.
func ExtractDiagram(data []byte) (string, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return "", errors.New("not a png image")
	}
	offset := len(pngSignature)
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		next := offset + 8 + length + 4
		if next > len(data) {
			return "", errors.New("truncated png chunk")
		}
		if chunkType == "IEND" {
			break
		}
		if chunkType == "tEXt" {
			body := data[offset+8 : offset+8+length]
			if sep := bytes.IndexByte(body, 0); sep >= 0 && string(body[:sep]) == diagramTextKey {
				xml, err := url.PathUnescape(string(body[sep+1:]))
				if err != nil {
					return "", errors.Wrap(err, "decode diagram chunk")
				}
				return xml, nil
			}
		}
		offset = next
	}
	return "", nil
}

// EmbedDiagram inserts the diagram model as a tEXt chunk directly after
// the IHDR chunk, replacing any previous diagram chunk.
func EmbedDiagram(data []byte, xml string) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a png image")
	}
	out := bytes.NewBuffer(make([]byte, 0, len(data)+len(xml)))
	out.Write(pngSignature)
	offset := len(pngSignature)
	inserted := false
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		next := offset + 8 + length + 4
		if next > len(data) {
			return nil, errors.New("truncated png chunk")
		}
		if chunkType == "tEXt" {
			body := data[offset+8 : offset+8+length]
			if sep := bytes.IndexByte(body, 0); sep >= 0 && string(body[:sep]) == diagramTextKey {
				// drop the stale model, the fresh one follows IHDR
				offset = next
				continue
			}
		}
		out.Write(data[offset:next])
		if chunkType == "IHDR" && !inserted {
			writeTextChunk(out, diagramTextKey, encodeURIComponent(xml))
			inserted = true
		}
		offset = next
		if chunkType == "IEND" {
			break
		}
	}
	if !inserted {
		return nil, errors.New("png missing IHDR chunk")
	}
	return out.Bytes(), nil
}

func writeTextChunk(out *bytes.Buffer, key, text string) {
	body := make([]byte, 0, len(key)+1+len(text))
	body = append(body, key...)
	body = append(body, 0)
	body = append(body, text...)

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(body)))
	copy(header[4:], "tEXt")
	out.Write(header[:])
	out.Write(body)

	crc := crc32.NewIEEE()
	_, _ = crc.Write(header[4:])
	_, _ = crc.Write(body)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	out.Write(sum[:])
}

// encodeURIComponent mirrors the JS escaping the editor uses for URL
// path segments and the diagram chunk, so either side can read the
// other's output. A space becomes %20, never the query form +.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return strings.ReplaceAll(escaped, "+", "%20")
}
