package pgs

// decodeRLE expands an object payload into width*height palette indices.
//
// Codes:
//
//	CCCCCCCC                            one pixel of color C
//	00000000 00000000                   end of line
//	00000000 00LLLLLL                   L pixels of color 0
//	00000000 01LLLLLL LLLLLLLL          L pixels of color 0
//	00000000 10LLLLLL CCCCCCCC          L pixels of color C
//	00000000 11LLLLLL LLLLLLLL CCCCCCCC L pixels of color C
//
// Runs past the end of a line are truncated and missing pixels stay 0, so a
// malformed payload still yields a complete grid.
func decodeRLE(data []byte, width, height int) []byte {
	pix := make([]byte, width*height)
	if width <= 0 || height <= 0 {
		return pix
	}

	x, y := 0, 0
	put := func(c byte, n int) {
		for ; n > 0; n-- {
			if x < width {
				pix[y*width+x] = c
			}
			x++
		}
	}

	i := 0
	for i < len(data) && y < height {
		b := data[i]
		i++
		if b != 0 {
			put(b, 1)
			continue
		}
		if i >= len(data) {
			break
		}
		flag := data[i]
		i++

		switch flag >> 6 {
		case 0:
			if flag == 0 {
				x = 0
				y++
				continue
			}
			put(0, int(flag&0x3f))
		case 1:
			if i >= len(data) {
				return pix
			}
			put(0, int(flag&0x3f)<<8|int(data[i]))
			i++
		case 2:
			if i >= len(data) {
				return pix
			}
			put(data[i], int(flag&0x3f))
			i++
		case 3:
			if i+1 >= len(data) {
				return pix
			}
			put(data[i+1], int(flag&0x3f)<<8|int(data[i]))
			i += 2
		}
	}
	return pix
}
