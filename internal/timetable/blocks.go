package timetable

import "strings"

const (
	blockSeparator = " "
	partSeparator  = "/"
)

// TeacherBlock is one teacher entry of an annotation.
type TeacherBlock struct {
	Teacher string
	Weeks   string
}

// SplitTeacherBlocks splits an annotation such as "张三/[1-3周]/6-7节 李四/[5周]/6-7节".
// Blocks without a weeks part are dropped and counted; parts after the weeks annotation are ignored.
func SplitTeacherBlocks(annotation string) ([]TeacherBlock, int) {
	fragments := strings.Split(annotation, blockSeparator)
	blocks := make([]TeacherBlock, 0, len(fragments))
	dropped := 0
	for _, fragment := range fragments {
		if fragment == "" {
			continue
		}
		parts := strings.Split(fragment, partSeparator)
		if len(parts) < 2 {
			dropped++
			continue
		}
		blocks = append(blocks, TeacherBlock{Teacher: parts[0], Weeks: parts[1]})
	}
	return blocks, dropped
}
