package renderer

type dividerStyle int

const (
	dividerSolid dividerStyle = iota
	dividerDouble
	dividerDashed
)

const dividerHeight = 15.0

// renderDivider draws a horizontal rule between the margins when dividers are enabled
func (r *Renderer) renderDivider(style dividerStyle) {
	if !r.cfg.Dividers {
		return
	}

	r.ensureHeight(int(dividerHeight))

	y := r.y + dividerHeight/2
	x1 := r.cfg.MarginX
	x2 := r.innerRight()

	r.ctx.SetLineWidth(2)

	switch style {
	case dividerSolid:
		r.ctx.DrawLine(x1, y, x2, y)
		r.ctx.Stroke()

	case dividerDouble:
		r.ctx.DrawLine(x1, y-2, x2, y-2)
		r.ctx.Stroke()
		r.ctx.DrawLine(x1, y+2, x2, y+2)
		r.ctx.Stroke()

	case dividerDashed:
		dashLength := 10.0
		gapLength := 5.0
		for x := x1; x < x2; x += dashLength + gapLength {
			endX := x + dashLength
			if endX > x2 {
				endX = x2
			}
			r.ctx.DrawLine(x, y, endX, y)
			r.ctx.Stroke()
		}
	}

	r.mark(y + 3)
	r.y += dividerHeight
}
