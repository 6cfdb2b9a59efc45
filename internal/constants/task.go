package constants

// Task identifies a task variant: which units stimulus angles are expressed in.
type Task string

const (
	// TaskAngle uses rotation angles in degrees.
	TaskAngle Task = "angle"

	// TaskIndex uses integer rotation indices.
	TaskIndex Task = "index"
)

// Valid returns true if the task is a recognized value.
func (t Task) Valid() bool {
	switch t {
	case TaskAngle, TaskIndex:
		return true
	}
	return false
}

// String returns the string representation of the task.
func (t Task) String() string {
	return string(t)
}
