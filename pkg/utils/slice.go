package utils

// SliceConvert converts slice to another type slice
func SliceConvert[S any, D any](srcS []S, convert func(src S) (D, error)) ([]D, error) {
	res := make([]D, 0, len(srcS))
	for i := range srcS {
		dst, err := convert(srcS[i])
		if err != nil {
			return nil, err
		}
		res = append(res, dst)
	}
	return res, nil
}

// SliceFilter returns the elements of src that satisfy keep
func SliceFilter[T any](src []T, keep func(T) bool) []T {
	res := make([]T, 0, len(src))
	for _, v := range src {
		if keep(v) {
			res = append(res, v)
		}
	}
	return res
}
