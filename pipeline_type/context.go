package pipeline_type

// Context carries a document run's artifacts between steps. The typed fields
// hold the pipeline products; Data and StepOutputs keep the free-form values
// steps want to expose to later steps and to the execution store.
type Context struct {
	DocumentID int64
	Document   *Document
	Pages      []Page
	Text       string
	Chunks     []*Chunk

	// Task candidates collected along the way; merged by the task step.
	ModelTasks []Task
	RuleTasks  []Task

	Data        map[string]interface{}
	StepOutputs map[string]interface{}
}

func NewContext() *Context {
	return &Context{
		Data:        make(map[string]interface{}),
		StepOutputs: make(map[string]interface{}),
	}
}

func (c *Context) Set(key string, value interface{}) {
	c.Data[key] = value
}

func (c *Context) Get(key string) (interface{}, bool) {
	val, ok := c.Data[key]
	return val, ok
}

func (c *Context) SetStepOutput(key string, value interface{}) {
	c.StepOutputs[key] = value
}

func (c *Context) GetStepOutput(key string) (interface{}, bool) {
	val, ok := c.StepOutputs[key]
	return val, ok
}
