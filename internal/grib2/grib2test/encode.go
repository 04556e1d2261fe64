// Package grib2test writes small simple-packed GRIB2 messages for tests.
// griblib only decodes, so fixtures are encoded here.
package grib2test

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/bits"
	"time"
)

// Message describes one field on a regular latitude/longitude grid.
type Message struct {
	Discipline int
	Category   int
	Number     int

	RefTime      time.Time
	ForecastHour int

	SurfaceType  int
	SurfaceValue int

	// Grid corners in degrees. Rows run from Lat1 to Lat2, columns from Lon1 to Lon2.
	Lat1, Lon1 float64
	Lat2, Lon2 float64
	Ni, Nj     int

	// Values in scanning order (j*Ni+i). NaN points are masked out with a bitmap.
	Values []float64

	// DecimalScale is the number of decimal digits preserved. Defaults to 2.
	DecimalScale int
}

// Encode concatenates one GRIB2 message per input.
func Encode(msgs ...Message) []byte {
	var out bytes.Buffer
	for _, m := range msgs {
		out.Write(encode(m))
	}
	return out.Bytes()
}

func encode(m Message) []byte {
	if m.DecimalScale == 0 {
		m.DecimalScale = 2
	}

	var body bytes.Buffer
	body.Write(identification(m.RefTime))
	body.Write(gridDefinition(m))
	body.Write(productDefinition(m))

	dataRep, bitmap, data := pack(m)
	body.Write(dataRep)
	body.Write(bitmap)
	body.Write(data)
	body.WriteString("7777")

	total := uint64(16 + body.Len())
	head := make([]byte, 16)
	copy(head, "GRIB")
	head[6] = byte(m.Discipline)
	head[7] = 2
	binary.BigEndian.PutUint64(head[8:], total)
	return append(head, body.Bytes()...)
}

func section(num byte, payload []byte) []byte {
	out := make([]byte, 5, 5+len(payload))
	binary.BigEndian.PutUint32(out, uint32(5+len(payload)))
	out[4] = num
	return append(out, payload...)
}

func identification(t time.Time) []byte {
	t = t.UTC()
	p := make([]byte, 16)
	binary.BigEndian.PutUint16(p[0:], 7) // NCEP
	p[4] = 2
	p[5] = 1
	p[6] = 1
	binary.BigEndian.PutUint16(p[7:], uint16(t.Year()))
	p[9] = byte(t.Month())
	p[10] = byte(t.Day())
	p[11] = byte(t.Hour())
	p[12] = byte(t.Minute())
	p[13] = byte(t.Second())
	p[15] = 1
	return section(1, p)
}

func gridDefinition(m Message) []byte {
	p := make([]byte, 67)
	binary.BigEndian.PutUint32(p[1:], uint32(m.Ni*m.Nj))
	// template 3.0 at p[9:]
	t := p[9:]
	t[0] = 6
	binary.BigEndian.PutUint32(t[16:], uint32(m.Ni))
	binary.BigEndian.PutUint32(t[20:], uint32(m.Nj))
	binary.BigEndian.PutUint32(t[28:], math.MaxUint32)
	putSigned32(t[32:], micro(m.Lat1))
	putSigned32(t[36:], micro(m.Lon1))
	t[40] = 48
	putSigned32(t[41:], micro(m.Lat2))
	putSigned32(t[45:], micro(m.Lon2))
	binary.BigEndian.PutUint32(t[49:], uint32(step(m.Lon1, m.Lon2, m.Ni)))
	binary.BigEndian.PutUint32(t[53:], uint32(step(m.Lat1, m.Lat2, m.Nj)))
	if m.Lat2 > m.Lat1 {
		t[57] = 0x40
	}
	return section(3, p)
}

func productDefinition(m Message) []byte {
	p := make([]byte, 29)
	p[4] = byte(m.Category)
	p[5] = byte(m.Number)
	p[6] = 2
	p[8] = 96
	p[12] = 1 // hours
	binary.BigEndian.PutUint32(p[13:], uint32(m.ForecastHour))
	p[17] = byte(m.SurfaceType)
	binary.BigEndian.PutUint32(p[19:], uint32(m.SurfaceValue))
	p[23] = 255
	p[24] = 255
	binary.BigEndian.PutUint32(p[25:], math.MaxUint32)
	return section(4, p)
}

func pack(m Message) (dataRep, bitmap, data []byte) {
	factor := math.Pow(10, float64(m.DecimalScale))

	var (
		scaled []int64
		mask   = make([]byte, (len(m.Values)+7)/8)
		masked bool
		ref    int64
	)
	for k, v := range m.Values {
		if math.IsNaN(v) {
			masked = true
			continue
		}
		mask[k/8] |= 0x80 >> (k % 8)
		s := int64(math.Round(v * factor))
		if len(scaled) == 0 || s < ref {
			ref = s
		}
		scaled = append(scaled, s)
	}

	var maxX uint64
	for _, s := range scaled {
		if x := uint64(s - ref); x > maxX {
			maxX = x
		}
	}
	// whole octets keep the data section free of padding values
	nbits := (bits.Len64(maxX) + 7) / 8 * 8
	if nbits == 0 {
		nbits = 8
	}

	p := make([]byte, 16)
	binary.BigEndian.PutUint32(p[0:], uint32(len(scaled)))
	binary.BigEndian.PutUint32(p[6:], math.Float32bits(float32(ref)))
	binary.BigEndian.PutUint16(p[12:], uint16(m.DecimalScale))
	p[14] = byte(nbits)
	dataRep = section(5, p)

	if masked {
		bitmap = section(6, append([]byte{0}, mask...))
	} else {
		bitmap = section(6, []byte{255})
	}

	w := &bitWriter{}
	for _, s := range scaled {
		w.write(uint64(s-ref), nbits)
	}
	data = section(7, w.bytes())
	return dataRep, bitmap, data
}

type bitWriter struct {
	buf  []byte
	nbit int
}

func (w *bitWriter) write(v uint64, n int) {
	for k := n - 1; k >= 0; k-- {
		if w.nbit%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v&(1<<uint(k)) != 0 {
			w.buf[len(w.buf)-1] |= 0x80 >> (w.nbit % 8)
		}
		w.nbit++
	}
}

func (w *bitWriter) bytes() []byte { return w.buf }

func micro(deg float64) int64 { return int64(math.Round(deg * 1e6)) }

func step(first, last float64, n int) int64 {
	if n < 2 {
		return 0
	}
	return int64(math.Round(math.Abs(last-first) / float64(n-1) * 1e6))
}

func putSigned32(b []byte, v int64) {
	u := uint32(v)
	if v < 0 {
		u = uint32(-v) | 0x80000000
	}
	binary.BigEndian.PutUint32(b, u)
}
