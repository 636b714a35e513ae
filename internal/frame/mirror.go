package frame

import "gocv.io/x/gocv"

// mirrorSource flips every frame horizontally so a webcam behaves like a
// mirror.
type mirrorSource struct {
	Source
	tmp gocv.Mat
}

// Mirror wraps src so frames come out flipped left-to-right.
func Mirror(src Source) Source {
	return &mirrorSource{Source: src, tmp: gocv.NewMat()}
}

func (m *mirrorSource) Read(dst *gocv.Mat) error {
	if err := m.Source.Read(&m.tmp); err != nil {
		return err
	}
	gocv.Flip(m.tmp, dst, 1)
	return nil
}

func (m *mirrorSource) Close() error {
	m.tmp.Close()
	return m.Source.Close()
}
