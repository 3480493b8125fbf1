package vision

// Component связная область переднего плана
type Component struct {
	Xs []int
	Ys []int
}

// Size возвращает число пикселей области
func (c Component) Size() int {
	return len(c.Xs)
}

// largestComponentPure обход в ширину по 8 соседям
func largestComponentPure(mask []bool, w, h int) Component {
	visited := make([]bool, len(mask))
	var best Component
	queue := make([]int, 0, 64)

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		var cur Component
		queue = append(queue[:0], start)
		visited[start] = true
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			x, y := i%w, i/w
			cur.Xs = append(cur.Xs, x)
			cur.Ys = append(cur.Ys, y)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if mask[j] && !visited[j] {
						visited[j] = true
						queue = append(queue, j)
					}
				}
			}
		}
		if cur.Size() > best.Size() {
			best = cur
		}
	}
	return best
}
