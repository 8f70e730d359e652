package obstacles

import (
	"encoding/xml"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// xmlShape is any child of the <map> root. Unknown element names are ignored.
type xmlShape struct {
	XMLName xml.Name
	X       float64 `xml:"x,attr"`
	Y       float64 `xml:"y,attr"`
	Width   float64 `xml:"width,attr"`
	Height  float64 `xml:"height,attr"`
	Radius  float64 `xml:"radius,attr"`
}

type xmlMap struct {
	Shapes []xmlShape `xml:",any"`
}

// ParseXML builds a map from a document such as
//
//	<map>
//	  <rectangle x="0" y="0" width="2" height="1"/>
//	  <circle x="5" y="5" radius="1.5"/>
//	</map>
func ParseXML(data []byte) (*Map, error) {
	var doc xmlMap
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "cannot parse obstacle map")
	}
	m := NewMap()
	var err error
	for _, shape := range doc.Shapes {
		switch shape.XMLName.Local {
		case "rectangle":
			err = multierr.Append(err, m.AddRectangle(shape.X, shape.Y, shape.Width, shape.Height))
		case "circle":
			err = multierr.Append(err, m.AddCircle(shape.X, shape.Y, shape.Radius))
		}
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ReadXML reads an obstacle map file.
func ReadXML(filename string) (*Map, error) {
	//nolint:gosec
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	m, err := ParseXML(data)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return m, nil
}
