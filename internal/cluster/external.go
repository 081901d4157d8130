package cluster

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	rferrors "ruleforge/internal/errors"
)

// payloadEntry accepts both the documented field names and the Item1/Item2
// names produced by the density clustering tool.
type payloadEntry struct {
	Members        []string `json:"members"`
	Item1          []string `json:"Item1"`
	Representative *string  `json:"representative"`
	Item2          *string  `json:"Item2"`
}

type externalCluster struct {
	Label          string   `validate:"required"`
	Members        []string `validate:"required,min=1,dive,required"`
	Representative *string  `validate:"omitnil,min=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodePayload reads an external clustering result:
//
//	{"<label>": {"members": ["..."], "representative": "..."}, ...}
//
// A bare member array per label is accepted too, in which case the
// representative is the medoid under edit distance bounded by maxDistance.
// Clusters keep the order of the payload. Any violation yields
// CLUSTER_PAYLOAD_INVALID.
func DecodePayload(r io.Reader, maxDistance int) ([]Cluster, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, invalidPayload("read payload", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, invalidPayload("payload must be a JSON object", nil)
	}

	var out []Cluster
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, invalidPayload("read cluster label", err)
		}
		label, _ := tok.(string)
		if seen[label] {
			return nil, invalidPayload(fmt.Sprintf("duplicate cluster label %q", label), nil)
		}
		seen[label] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, invalidPayload(fmt.Sprintf("cluster %q", label), err)
		}
		ec, err := decodeEntry(label, raw)
		if err != nil {
			return nil, err
		}
		if err := validate.Struct(ec); err != nil {
			return nil, invalidPayload(fmt.Sprintf("cluster %q", label), err)
		}

		c := Cluster{Label: label, Words: ec.Members}
		if ec.Representative != nil {
			c.Representative = *ec.Representative
		} else {
			c.Representative = ec.Members[MedoidWords(ec.Members, maxDistance)]
		}
		out = append(out, c)
	}

	if _, err := dec.Token(); err != nil {
		return nil, invalidPayload("unterminated payload", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalidPayload("trailing data after payload", err)
	}
	return out, nil
}

func decodeEntry(label string, raw json.RawMessage) (externalCluster, error) {
	ec := externalCluster{Label: label}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &ec.Members); err != nil {
			return ec, invalidPayload(fmt.Sprintf("cluster %q members", label), err)
		}
		return ec, nil
	}

	var e payloadEntry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return ec, invalidPayload(fmt.Sprintf("cluster %q", label), err)
	}
	ec.Members = e.Members
	if ec.Members == nil {
		ec.Members = e.Item1
	}
	ec.Representative = e.Representative
	if ec.Representative == nil {
		ec.Representative = e.Item2
	}
	return ec, nil
}

func invalidPayload(msg string, cause error) error {
	return rferrors.New(rferrors.ClusterPayloadInvalid, msg, cause)
}

type payloadOut struct {
	Members        []string `json:"members"`
	Representative string   `json:"representative,omitempty"`
}

// EncodePayload writes clusters in the form DecodePayload reads, keeping
// their order. An empty representative is omitted and left to the reader.
func EncodePayload(w io.Writer, clusters []Cluster) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range clusters {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(c.Label)
		if err != nil {
			return err
		}
		body, err := json.Marshal(payloadOut{Members: c.Words, Representative: c.Representative})
		if err != nil {
			return err
		}
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteString("}\n")
	_, err := w.Write(buf.Bytes())
	return err
}
