// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/xmidt-org/panoptes/model"
)

// ParseKeyValues splits VMS text answers such as "sessionid=abc" or
// "status=Running;percent=42" into a map. Pairs may be separated by
// semicolons or line breaks. Keys are lowercased; the value is everything
// after the first '='. Tokens without '=' are ignored.
func ParseKeyValues(s string) map[string]string {
	values := make(map[string]string)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '\n' || r == '\r'
	})
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if len(k) == 0 {
			continue
		}
		values[k] = strings.TrimSpace(v)
	}
	return values
}

type camerasDocument struct {
	XMLName xml.Name        `xml:"cameras"`
	Cameras []cameraElement `xml:"camera"`
}

type cameraElement struct {
	ID      string `xml:"id,attr"`
	Name    string `xml:"name,attr"`
	Enabled string `xml:"enabled,attr"`
	PTZ     string `xml:"ptz,attr"`
	Streams string `xml:"streams,attr"`
	Status  string `xml:"status,attr"`
}

func (e cameraElement) camera() model.Camera {
	return model.Camera{
		ID:      e.ID,
		Name:    e.Name,
		Enabled: e.Enabled == "" || cast.ToBool(e.Enabled),
		PTZ:     cast.ToBool(e.PTZ),
		Streams: cast.ToInt(e.Streams),
		Status:  e.Status,
	}
}

type personsDocument struct {
	XMLName xml.Name        `xml:"persons"`
	Persons []personElement `xml:"person"`
}

type personElement struct {
	XMLName xml.Name `xml:"person"`
	ID      string   `xml:"id,attr"`
	Name    string   `xml:"name,attr"`
	Group   string   `xml:"group,attr"`
	Comment string   `xml:"comment,attr"`
	Photos  string   `xml:"photos,attr"`
}

func (e personElement) person() model.Person {
	return model.Person{
		ID:      e.ID,
		Name:    e.Name,
		Group:   e.Group,
		Comment: e.Comment,
		Photos:  cast.ToInt(e.Photos),
	}
}

type eventsDocument struct {
	XMLName xml.Name       `xml:"events"`
	Events  []eventElement `xml:"event"`
}

type eventElement struct {
	ID      string `xml:"id,attr"`
	Time    string `xml:"time,attr"`
	Camera  string `xml:"camera,attr"`
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
}

type sequencesDocument struct {
	XMLName   xml.Name          `xml:"sequences"`
	Sequences []sequenceElement `xml:"sequence"`
}

type sequenceElement struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

func decodeXML(body []byte, v any) error {
	return xml.NewDecoder(bytes.NewReader(body)).Decode(v)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(s))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
