package llm

import (
	"fmt"

	"CommunityInsights/internal/domain"
)

const postTemplate = `Hi all—I've been struggling with [problem] and I know a lot of people here have been too.

I spent some time working through it last week, and here's a simple way I solved it [mention cost/effort if applicable, e.g., "for less than $10/m" or "with a simple tweak"]:

1. [Step 1 or Key Insight].
2. [Step 2 or Another Insight].
3. [Step 3 or Concluding thought].

If anything is unclear, let me know. Hope this helps you 🙏`

func insightPrompt(content string) string {
	return fmt.Sprintf(`Analyze the following community post and extract the problem being discussed.
The post typically follows a format where someone is asking for help or describing an issue they're facing.

Post Content:
%q

Extract the following information:
1. What specific problem or pain point is being described? (Be concise)
2. What category would this problem fall under? (e.g., Marketing, Tech, Business Operations, etc.)
3. What relevant tags would you assign to this post? (Provide 3-5 tags)
4. Is there any potential solution suggested in the post? If yes, briefly describe it.

Format your response as JSON with the following structure:
{
  "problemIdentified": "The extracted problem statement",
  "category": "The relevant category",
  "tags": ["tag1", "tag2", "tag3"],
  "potentialSolution": "Brief description of any solution mentioned or null if none is provided"
}`, content)
}

func selectionPrompt(summaries string) string {
	return fmt.Sprintf(`You are evaluating community posts to see if a helpful, solution-oriented post can be generated based on them.
The target format for the generated post is:
"""
%s
"""

Analyze the following post summaries. Identify the single best candidate post from which you could realistically generate a helpful post following the target format. A good candidate is one where a problem is clearly stated, and either a simple solution is hinted at in the original content, OR the problem itself is common enough that a general helpful perspective or insight could be offered.

If you find a suitable candidate, return ONLY its corresponding 'id'.
If NONE of the posts seem suitable (too complex, unclear, no potential for a simple solution or insight), return the exact string "%s".

Post Summaries:
%s

Return only the selected 'id' or the string "%s".`, postTemplate, noSelection, summaries, noSelection)
}

func draftPrompt(source domain.PostRow) string {
	problem := source.Problem
	if problem == "" {
		problem = "a problem mentioned previously"
	}

	solution := ""
	if source.Solution != "" {
		solution = fmt.Sprintf("Original Post Suggested Solution: %q\n", source.Solution)
	}

	return fmt.Sprintf(`Generate a helpful community post based on the following original post discussion.
The goal is to share a potential solution or perspective in a concise, helpful way, like the example template.

Original Post Problem: %q
Original Post Content Snippet (for context): %q
%s
Use this template structure:

%s

---

Generate ONLY the text content for the new post based on the information above. Be concise and helpful. If the original post didn't offer a clear solution, offer a helpful perspective or ask an engaging question related to the problem instead of listing steps. Do not include the "Original Post..." lines in the output.`,
		problem, domain.Truncate(source.OriginalContent, draftSnippetLength)+"...", solution, postTemplate)
}
