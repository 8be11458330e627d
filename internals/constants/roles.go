package constants

import "fmt"

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Template pesan error role
const (
	ErrOnlyTeachersCanAccess = "❌ Hanya teacher yang boleh mengakses fitur %s."
	ErrOnlyStudentsCanAccess = "❌ Hanya student yang boleh mengakses fitur %s."
)

func RoleErrorTeacher(feature string) string {
	return fmt.Sprintf(ErrOnlyTeachersCanAccess, feature)
}

func RoleErrorStudent(feature string) string {
	return fmt.Sprintf(ErrOnlyStudentsCanAccess, feature)
}
