package postprocess

// UniqueClasses collapses the classes of the selected candidates into distinct
// class indices, keeping the order in which each class first appears.
//
// Arguments:
//   - selected: Candidate indices in selection order.
//   - classes: The best class index of every candidate.
//
// Returns:
//   - []int: Distinct class indices. Never nil.
func UniqueClasses(selected []int, classes []int) []int {
	seen := make(map[int]struct{}, len(selected))
	unique := make([]int, 0, len(selected))
	for _, idx := range selected {
		class := classes[idx]
		if _, ok := seen[class]; ok {
			continue
		}
		seen[class] = struct{}{}
		unique = append(unique, class)
	}
	return unique
}
