package lang

func init() {
	Register(Python, ".py")
}
