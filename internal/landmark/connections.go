package landmark

// Connection is a pair of landmarks joined by a line in the skeleton overlay.
type Connection struct {
	From Index
	To   Index
}

// Connections lists the overlay skeleton segments.
var Connections = []Connection{
	{MouthLeft, MouthRight},
	{LeftEyeInner, LeftEyeOuter},
	{RightEyeInner, RightEyeOuter},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow},
	{RightShoulder, RightElbow},
	{LeftElbow, LeftWrist},
	{RightElbow, RightWrist},
	{LeftWrist, LeftThumb},
	{RightWrist, RightThumb},
	{LeftWrist, LeftIndex},
	{RightWrist, RightIndex},
	{LeftWrist, LeftPinky},
	{RightWrist, RightPinky},
	{LeftIndex, LeftPinky},
	{RightIndex, RightPinky},
	{LeftShoulder, LeftHip},
	{RightShoulder, RightHip},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee},
	{RightHip, RightKnee},
	{LeftKnee, LeftAnkle},
	{RightKnee, RightAnkle},
	{LeftAnkle, LeftFootIndex},
	{RightAnkle, RightFootIndex},
	{LeftAnkle, LeftHeel},
	{RightAnkle, RightHeel},
	{LeftFootIndex, LeftHeel},
	{RightFootIndex, RightHeel},
}
